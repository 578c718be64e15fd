package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kreativ/KreativPoster/internal/domain"
	"github.com/kreativ/KreativPoster/internal/notify"
	"github.com/kreativ/KreativPoster/internal/repo"
	"github.com/kreativ/KreativPoster/internal/telemetry"
)

// PostStore — операции хранилища, нужные планировщику.
// Реализуется repo.PostRepo.
type PostStore interface {
	ListDueBefore(ctx context.Context, now time.Time, limit int) ([]domain.Post, error)
	AcquireLease(ctx context.Context, id, token uuid.UUID, expiry time.Time) (bool, error)
	FinalizePublish(ctx context.Context, id, token uuid.UUID, status domain.PostStatus, results []domain.PublishResult, publishedAt time.Time) error
	Reschedule(ctx context.Context, id, token uuid.UUID, at time.Time) error
}

// Publisher — fan-out публикации поста на его платформы.
// Реализуется publish.Orchestrator.
type Publisher interface {
	Publish(ctx context.Context, post *domain.Post) ([]domain.PublishResult, error)
}

// Notifier — рассылка событий жизненного цикла.
// Реализуется notify.Dispatcher.
type Notifier interface {
	Publish(n notify.Notification)
}

// RetryPolicy — политика повторов провалившихся публикаций.
//
// MaxAttempts=1 означает «без повторов»: первый провал терминален.
// Повтор планируется только когда ВСЕ платформы провалились;
// частичный успех — это published, повторов нет.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Stats — итоги одного reconciliation-прохода.
type Stats struct {
	Due         int
	Published   int
	Failed      int
	Rescheduled int
	Skipped     int
	Reclaimed   int
}

// Scheduler находит посты с наступившим временем публикации
// и доводит каждый до терминального статуса.
//
// Проход безопасен при конкурентном запуске из нескольких триггеров:
// пост обрабатывает только тот проход, который выиграл lease в
// хранилище. Проигравший молча пропускает пост.
type Scheduler struct {
	store       PostStore
	publisher   Publisher
	notifier    Notifier
	retry       RetryPolicy
	leaseTTL    time.Duration
	batchSize   int
	parallelism int
	logger      *slog.Logger

	now func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Store       PostStore
	Publisher   Publisher
	Notifier    Notifier // опционален
	Retry       RetryPolicy
	LeaseTTL    time.Duration // default: 30s
	BatchSize   int           // постов за один проход (default: 100)
	Parallelism int           // одновременно обрабатываемых постов (default: 4)
	Logger      *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scheduler{
		store:       cfg.Store,
		publisher:   cfg.Publisher,
		notifier:    cfg.Notifier,
		retry:       cfg.Retry,
		leaseTTL:    cfg.LeaseTTL,
		batchSize:   cfg.BatchSize,
		parallelism: cfg.Parallelism,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// Reconcile выполняет один проход планировщика.
//
// 1. Находит due посты (scheduled с наступившим временем
//    плюс publishing с истёкшим lease)
// 2. Захватывает lease на каждый
// 3. Публикует на платформы и фиксирует терминальный статус
// 4. Рассылает уведомления
//
// Ошибка выборки из хранилища прерывает проход: без консистентного
// списка работать нельзя. Ошибки отдельных постов проход не прерывают.
func (s *Scheduler) Reconcile(ctx context.Context, trigger string) (Stats, error) {
	_, stats, err := s.pass(ctx, trigger)
	return stats, err
}

// CheckNow выполняет немедленный синхронный проход и возвращает
// список due постов, найденных на его начало. Повторный вызов без
// новых due постов ничего не публикует: список окажется пустым.
func (s *Scheduler) CheckNow(ctx context.Context) ([]domain.Post, error) {
	due, _, err := s.pass(ctx, TriggerWake)
	return due, err
}

func (s *Scheduler) pass(ctx context.Context, trigger string) ([]domain.Post, Stats, error) {
	var stats Stats
	now := s.now()

	telemetry.ReconcilePasses.WithLabelValues(trigger).Inc()

	due, err := s.store.ListDueBefore(ctx, now, s.batchSize)
	if err != nil {
		return nil, stats, fmt.Errorf("list due posts: %w", err)
	}
	stats.Due = len(due)

	if len(due) == 0 {
		return due, stats, nil
	}

	s.logger.Debug("found due posts", "count", len(due), "trigger", trigger)

	// Независимые посты обрабатываются параллельно: медленная
	// платформа одного поста не должна задерживать остальные.
	// Гонок по выборке нет, посты делит lease.
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.parallelism)

	for i := range due {
		post := &due[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out, reclaimed := s.processPost(ctx, post)

			mu.Lock()
			defer mu.Unlock()
			if reclaimed {
				stats.Reclaimed++
			}
			switch out {
			case outcomePublished:
				stats.Published++
			case outcomeFailed:
				stats.Failed++
			case outcomeRescheduled:
				stats.Rescheduled++
			default:
				stats.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return due, stats, err
	}

	s.logger.Info("reconcile pass completed",
		"trigger", trigger,
		"due", stats.Due,
		"published", stats.Published,
		"failed", stats.Failed,
		"rescheduled", stats.Rescheduled,
		"skipped", stats.Skipped,
	)

	return due, stats, nil
}

// Исход обработки одного поста внутри прохода.
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomePublished
	outcomeFailed
	outcomeRescheduled
)

// processPost доводит один due пост до исхода.
// Все ошибки поста локальны: логируются, учитываются в исходе,
// но не прерывают проход.
func (s *Scheduler) processPost(ctx context.Context, post *domain.Post) (outcome, bool) {
	logger := telemetry.WithPostID(s.logger, post.ID.String())

	reclaimed := post.Status == domain.StatusPublishing

	token := uuid.New()
	expiry := s.now().Add(s.leaseTTL)

	acquired, err := s.store.AcquireLease(ctx, post.ID, token, expiry)
	if err != nil {
		logger.Error("failed to acquire lease", "error", err)
		return outcomeSkipped, false
	}
	if !acquired {
		// Пост забрал конкурентный проход, либо его успели
		// изменить или удалить. Это штатно.
		logger.Debug("lease not acquired, skipping")
		return outcomeSkipped, false
	}

	if reclaimed {
		telemetry.StaleLeases.Inc()
		logger.Warn("reclaimed stale publishing lease", "attempt", post.Attempt+1)
	}

	post.MarkPublishing(token, expiry)
	s.notify(notify.PublishStarted(post))

	results, err := s.publisher.Publish(ctx, post)
	if err != nil {
		// Отменили во время fan-out. Lease не снимаем: следующий
		// проход перехватит пост после истечения lease.
		logger.Warn("publish interrupted", "error", err)
		return outcomeSkipped, reclaimed
	}

	return s.finalize(ctx, post, token, results, logger), reclaimed
}

// finalize фиксирует исход публикации: терминальный статус
// или повтор по политике retry.
func (s *Scheduler) finalize(ctx context.Context, post *domain.Post, token uuid.UUID, results []domain.PublishResult, logger *slog.Logger) outcome {
	now := s.now()

	anySuccess := false
	for _, res := range results {
		if res.Success {
			anySuccess = true
			break
		}
	}

	if !anySuccess && post.Attempt < s.retry.MaxAttempts {
		// Все платформы провалились, попытки ещё есть — возвращаем
		// пост в scheduled на now+Delay.
		at := now.Add(s.retry.Delay)
		if err := s.store.Reschedule(ctx, post.ID, token, at); err != nil {
			s.logFinalizeError(logger, "reschedule", err)
			return outcomeSkipped
		}
		post.MarkRescheduled(at)
		logger.Info("post rescheduled after failed attempt",
			"attempt", post.Attempt, "next_at", at)
		return outcomeRescheduled
	}

	if anySuccess {
		post.MarkPublished(results)
	} else {
		post.MarkFailed(results)
	}

	if err := s.store.FinalizePublish(ctx, post.ID, token, post.Status, results, now); err != nil {
		s.logFinalizeError(logger, "finalize", err)
		return outcomeSkipped
	}

	logger.Info("post finalized", "status", post.Status, "platforms", len(results))
	s.notify(notify.PublishFinished(post))

	if post.Status == domain.StatusPublished {
		telemetry.PostsPublished.WithLabelValues("published").Inc()
		return outcomePublished
	}
	telemetry.PostsPublished.WithLabelValues("failed").Inc()
	return outcomeFailed
}

// logFinalizeError различает потерю lease (штатный исход гонки)
// и ошибку хранилища.
func (s *Scheduler) logFinalizeError(logger *slog.Logger, op string, err error) {
	if errors.Is(err, repo.ErrLeaseLost) {
		logger.Warn("lease lost before "+op, "error", err)
		return
	}
	logger.Error("failed to "+op+" post", "error", err)
}

func (s *Scheduler) notify(n notify.Notification) {
	if s.notifier != nil {
		s.notifier.Publish(n)
	}
}
