package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kreativ/KreativPoster/internal/domain"
	"github.com/kreativ/KreativPoster/internal/notify"
	"github.com/kreativ/KreativPoster/internal/repo"
)

// memStore — in-memory реализация PostStore с семантикой lease,
// идентичной SQL-запросам repo.PostRepo.
type memStore struct {
	mu      sync.Mutex
	posts   map[uuid.UUID]*domain.Post
	listErr error
	now     func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		posts: map[uuid.UUID]*domain.Post{},
		now:   time.Now,
	}
}

func (m *memStore) put(post *domain.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *post
	m.posts[post.ID] = &cp
}

func (m *memStore) get(id uuid.UUID) domain.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.posts[id]
}

func (m *memStore) ListDueBefore(_ context.Context, now time.Time, limit int) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Post
	for _, p := range m.posts {
		if len(out) >= limit {
			break
		}
		due := p.Status == domain.StatusScheduled && !p.ScheduledFor.After(now)
		stale := p.Status == domain.StatusPublishing && p.LeaseExpiry != nil && !p.LeaseExpiry.After(now)
		if due || stale {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) AcquireLease(_ context.Context, id, token uuid.UUID, expiry time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return false, nil
	}
	now := m.now()
	claimable := p.Status == domain.StatusScheduled ||
		(p.Status == domain.StatusPublishing && p.LeaseExpiry != nil && !p.LeaseExpiry.After(now))
	if !claimable {
		return false, nil
	}
	p.Status = domain.StatusPublishing
	p.LeaseToken = &token
	p.LeaseExpiry = &expiry
	p.Attempt++
	return true, nil
}

func (m *memStore) FinalizePublish(_ context.Context, id, token uuid.UUID, status domain.PostStatus, results []domain.PublishResult, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.LeaseToken == nil || *p.LeaseToken != token {
		return repo.ErrLeaseLost
	}
	p.Status = status
	p.Results = results
	p.PublishedAt = &publishedAt
	p.LeaseToken = nil
	p.LeaseExpiry = nil
	return nil
}

func (m *memStore) Reschedule(_ context.Context, id, token uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.LeaseToken == nil || *p.LeaseToken != token {
		return repo.ErrLeaseLost
	}
	p.Status = domain.StatusScheduled
	p.ScheduledFor = at
	p.Results = nil
	p.LeaseToken = nil
	p.LeaseExpiry = nil
	return nil
}

// fakePublisher возвращает заранее заданные результаты и считает вызовы.
type fakePublisher struct {
	mu      sync.Mutex
	calls   map[uuid.UUID]int
	succeed bool
	delay   time.Duration
}

func newFakePublisher(succeed bool) *fakePublisher {
	return &fakePublisher{calls: map[uuid.UUID]int{}, succeed: succeed}
}

func (f *fakePublisher) Publish(_ context.Context, post *domain.Post) ([]domain.PublishResult, error) {
	f.mu.Lock()
	f.calls[post.ID]++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	results := make([]domain.PublishResult, len(post.Platforms))
	for i, platform := range post.Platforms {
		results[i] = domain.PublishResult{Platform: platform, Success: f.succeed}
		if !f.succeed {
			results[i].Error = "api down"
		}
	}
	return results, nil
}

func (f *fakePublisher) callCount(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// recordingNotifier накапливает события.
type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Notification
}

func (r *recordingNotifier) Publish(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recordingNotifier) types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func duePost(platforms ...string) *domain.Post {
	return &domain.Post{
		ID:           uuid.New(),
		Caption:      "due post",
		Platforms:    platforms,
		ScheduledFor: time.Now().Add(-time.Minute),
		Status:       domain.StatusScheduled,
	}
}

func TestReconcilePublishesDuePost(t *testing.T) {
	store := newMemStore()
	pub := newFakePublisher(true)
	notes := &recordingNotifier{}

	post := duePost("facebook", "instagram")
	store.put(post)

	s := New(Config{Store: store, Publisher: pub, Notifier: notes})

	stats, err := s.Reconcile(context.Background(), TriggerTick)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if stats.Due != 1 || stats.Published != 1 {
		t.Errorf("stats = %+v, want Due=1 Published=1", stats)
	}

	got := store.get(post.ID)
	if got.Status != domain.StatusPublished {
		t.Errorf("status = %s, want published", got.Status)
	}
	if got.PublishedAt == nil {
		t.Error("PublishedAt not set")
	}
	if got.LeaseToken != nil || got.LeaseExpiry != nil {
		t.Error("lease not cleared after finalize")
	}
	if len(got.Results) != 2 {
		t.Errorf("results = %d, want 2", len(got.Results))
	}

	types := notes.types()
	if len(types) != 2 || types[0] != notify.EventPublishStarted || types[1] != notify.EventPublished {
		t.Errorf("notifications = %v, want [started published]", types)
	}
}

func TestReconcileProcessesPostsConcurrently(t *testing.T) {
	store := newMemStore()
	pub := newFakePublisher(true)
	pub.delay = 300 * time.Millisecond

	first := duePost("facebook")
	second := duePost("instagram")
	store.put(first)
	store.put(second)

	s := New(Config{Store: store, Publisher: pub})

	start := time.Now()
	stats, err := s.Reconcile(context.Background(), TriggerTick)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if stats.Published != 2 {
		t.Fatalf("stats = %+v, want Published=2", stats)
	}
	// Последовательная обработка заняла бы ~2×delay.
	if elapsed >= 2*pub.delay {
		t.Errorf("pass took %v for two independent posts, want ~%v", elapsed, pub.delay)
	}
}

func TestCheckNowIdempotent(t *testing.T) {
	store := newMemStore()
	pub := newFakePublisher(true)

	post := duePost("facebook")
	store.put(post)

	s := New(Config{Store: store, Publisher: pub})

	due, err := s.CheckNow(context.Background())
	if err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	if len(due) != 1 || due[0].ID != post.ID {
		t.Fatalf("due = %d posts, want the scheduled one", len(due))
	}

	// Повторный вызов без новых due постов: пусто, публикаций не прибавилось.
	due, err = s.CheckNow(context.Background())
	if err != nil {
		t.Fatalf("second CheckNow: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("second CheckNow due = %d, want 0", len(due))
	}
	if pub.callCount(post.ID) != 1 {
		t.Errorf("publish calls = %d, want 1", pub.callCount(post.ID))
	}
}

func TestReconcileAllPlatformsFail(t *testing.T) {
	store := newMemStore()
	notes := &recordingNotifier{}

	post := duePost("facebook")
	store.put(post)

	s := New(Config{Store: store, Publisher: newFakePublisher(false), Notifier: notes})

	stats, err := s.Reconcile(context.Background(), TriggerTick)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("stats = %+v, want Failed=1", stats)
	}

	got := store.get(post.ID)
	if got.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}

	types := notes.types()
	if len(types) != 2 || types[1] != notify.EventPublishFailed {
		t.Errorf("notifications = %v, want failure event", types)
	}
}

func TestReconcileRetryThenTerminal(t *testing.T) {
	store := newMemStore()
	pub := newFakePublisher(false)

	post := duePost("facebook")
	store.put(post)

	s := New(Config{
		Store:     store,
		Publisher: pub,
		Retry:     RetryPolicy{MaxAttempts: 2, Delay: time.Hour},
	})

	// Первая попытка: все платформы провалились, есть запас попыток —
	// пост вернулся в scheduled на час вперёд.
	stats, err := s.Reconcile(context.Background(), TriggerTick)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if stats.Rescheduled != 1 {
		t.Fatalf("stats = %+v, want Rescheduled=1", stats)
	}

	got := store.get(post.ID)
	if got.Status != domain.StatusScheduled {
		t.Fatalf("status = %s, want scheduled", got.Status)
	}
	if got.Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", got.Attempt)
	}
	if !got.ScheduledFor.After(time.Now().Add(30 * time.Minute)) {
		t.Fatalf("ScheduledFor = %v, want pushed ~1h forward", got.ScheduledFor)
	}

	// Вторая попытка (время повтора наступило): попытки исчерпаны —
	// терминальный failed.
	future := time.Now().Add(2 * time.Hour)
	s.now = func() time.Time { return future }
	store.now = s.now

	stats, err = s.Reconcile(context.Background(), TriggerTick)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("stats = %+v, want Failed=1", stats)
	}

	got = store.get(post.ID)
	if got.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Attempt != 2 {
		t.Errorf("attempt = %d, want 2", got.Attempt)
	}
	if pub.callCount(post.ID) != 2 {
		t.Errorf("publish calls = %d, want 2", pub.callCount(post.ID))
	}
}

func TestReconcileStoreErrorAbortsPass(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("connection refused")

	s := New(Config{Store: store, Publisher: newFakePublisher(true)})

	if _, err := s.Reconcile(context.Background(), TriggerTick); err == nil {
		t.Fatal("expected error when listing fails")
	}
}

func TestReconcileNotDueUntouched(t *testing.T) {
	store := newMemStore()
	pub := newFakePublisher(true)

	post := duePost("facebook")
	post.ScheduledFor = time.Now().Add(time.Hour)
	store.put(post)

	s := New(Config{Store: store, Publisher: pub})

	stats, err := s.Reconcile(context.Background(), TriggerTick)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if stats.Due != 0 {
		t.Errorf("stats = %+v, want Due=0", stats)
	}
	if got := store.get(post.ID); got.Status != domain.StatusScheduled {
		t.Errorf("status = %s, want scheduled", got.Status)
	}
	if pub.callCount(post.ID) != 0 {
		t.Errorf("publish calls = %d, want 0", pub.callCount(post.ID))
	}
}

// Конкурентные проходы над одним due постом: публикует ровно один,
// остальные проигрывают lease и пропускают.
func TestConcurrentReconcileSingleWinner(t *testing.T) {
	store := newMemStore()
	pub := newFakePublisher(true)

	post := duePost("facebook")
	store.put(post)

	s := New(Config{Store: store, Publisher: pub})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Reconcile(context.Background(), TriggerWake); err != nil {
				t.Errorf("Reconcile: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := pub.callCount(post.ID); got != 1 {
		t.Fatalf("publish calls = %d, want exactly 1", got)
	}
	if got := store.get(post.ID); got.Status != domain.StatusPublished {
		t.Errorf("status = %s, want published", got.Status)
	}
}

// Пост, застрявший в publishing с истёкшим lease, перехватывается
// и доводится до терминального статуса.
func TestReconcileReclaimsStaleLease(t *testing.T) {
	store := newMemStore()
	pub := newFakePublisher(true)

	post := duePost("facebook")
	deadToken := uuid.New()
	expired := time.Now().Add(-time.Minute)
	post.Status = domain.StatusPublishing
	post.LeaseToken = &deadToken
	post.LeaseExpiry = &expired
	post.Attempt = 1
	store.put(post)

	s := New(Config{Store: store, Publisher: pub})

	stats, err := s.Reconcile(context.Background(), TriggerTick)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if stats.Reclaimed != 1 || stats.Published != 1 {
		t.Errorf("stats = %+v, want Reclaimed=1 Published=1", stats)
	}

	got := store.get(post.ID)
	if got.Status != domain.StatusPublished {
		t.Errorf("status = %s, want published", got.Status)
	}
	if got.Attempt != 2 {
		t.Errorf("attempt = %d, want 2", got.Attempt)
	}
}

// Живой lease другого прохода не перехватывается.
func TestReconcileRespectsLiveLease(t *testing.T) {
	store := newMemStore()
	pub := newFakePublisher(true)

	post := duePost("facebook")
	liveToken := uuid.New()
	live := time.Now().Add(time.Minute)
	post.Status = domain.StatusPublishing
	post.LeaseToken = &liveToken
	post.LeaseExpiry = &live
	store.put(post)

	s := New(Config{Store: store, Publisher: pub})

	stats, err := s.Reconcile(context.Background(), TriggerTick)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if stats.Due != 0 {
		t.Errorf("stats = %+v, want Due=0 (live lease is not due)", stats)
	}
	if pub.callCount(post.ID) != 0 {
		t.Errorf("publish calls = %d, want 0", pub.callCount(post.ID))
	}
}

func TestRunnerWakeTriggersPass(t *testing.T) {
	store := newMemStore()
	pub := newFakePublisher(true)

	post := duePost("facebook")
	store.put(post)

	s := New(Config{Store: store, Publisher: pub})
	runner := NewRunner(RunnerConfig{Scheduler: s, TickInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = runner.Run(ctx)
	}()

	// Run делает немедленный первый проход.
	deadline := time.After(2 * time.Second)
	for store.get(post.ID).Status != domain.StatusPublished {
		select {
		case <-deadline:
			t.Fatal("post not published after startup pass")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Новый due пост публикуется по Wake, не дожидаясь тикера.
	second := duePost("instagram")
	store.put(second)
	runner.Wake(TriggerWake)

	deadline = time.After(2 * time.Second)
	for store.get(second.ID).Status != domain.StatusPublished {
		select {
		case <-deadline:
			t.Fatal("post not published after wake")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
