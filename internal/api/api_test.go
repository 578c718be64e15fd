package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kreativ/KreativPoster/internal/domain"
	"github.com/kreativ/KreativPoster/internal/notify"
	"github.com/kreativ/KreativPoster/internal/repo"
)

// fakeStore — in-memory PostStore с той же семантикой конфликтов,
// что у repo.PostRepo.
type fakeStore struct {
	mu    sync.Mutex
	posts map[uuid.UUID]*domain.Post
}

func newFakeStore() *fakeStore {
	return &fakeStore{posts: map[uuid.UUID]*domain.Post{}}
}

func (f *fakeStore) Put(_ context.Context, post *domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.posts[post.ID]; ok && existing.Status == domain.StatusPublishing {
		return repo.ErrConflict
	}
	cp := *post
	f.posts[post.ID] = &cp
	return nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) Update(_ context.Context, post *domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.posts[post.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if existing.Status == domain.StatusPublishing {
		return repo.ErrConflict
	}
	cp := *post
	f.posts[post.ID] = &cp
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil
	}
	if p.Status == domain.StatusPublishing {
		return repo.ErrConflict
	}
	delete(f.posts, id)
	return nil
}

func (f *fakeStore) ListByStatus(_ context.Context, status domain.PostStatus) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Post
	for _, p := range f.posts {
		if p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

// fakeControl считает wake-и и отдаёт заготовленный due-список.
type fakeControl struct {
	mu     sync.Mutex
	wakes  int
	checks int
	due    []domain.Post
}

func (f *fakeControl) Wake(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wakes++
}

func (f *fakeControl) CheckNow(context.Context) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.due, nil
}

func (f *fakeControl) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wakes
}

func newTestHandler(store *fakeStore, control *fakeControl, events EventSource) http.Handler {
	h := NewHandler(Config{
		Store:     store,
		Scheduler: control,
		Events:    events,
		Grace:     2 * time.Minute,
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) PostResponse {
	t.Helper()
	var resp struct {
		Data PostResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) ErrorCode {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestCreatePost(t *testing.T) {
	store := newFakeStore()
	control := &fakeControl{}
	mux := newTestHandler(store, control, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/posts", CreatePostRequest{
		Caption:      "Sommersalg!",
		Platforms:    []string{"facebook", "instagram"},
		ScheduledFor: time.Now().Add(time.Hour),
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	post := decodeData(t, rec)
	if post.Status != domain.StatusScheduled {
		t.Errorf("status = %s, want scheduled", post.Status)
	}
	if post.ID == uuid.Nil {
		t.Error("expected generated id")
	}
	if control.count() != 1 {
		t.Errorf("wakes = %d, want 1", control.count())
	}
}

func TestCreatePostValidation(t *testing.T) {
	mux := newTestHandler(newFakeStore(), &fakeControl{}, nil)

	tests := []struct {
		name string
		req  CreatePostRequest
	}{
		{"no platforms", CreatePostRequest{
			Caption:      "x",
			ScheduledFor: time.Now().Add(time.Hour),
		}},
		{"empty caption", CreatePostRequest{
			Platforms:    []string{"facebook"},
			ScheduledFor: time.Now().Add(time.Hour),
		}},
		{"zero time", CreatePostRequest{
			Caption:   "x",
			Platforms: []string{"facebook"},
		}},
		{"far in the past", CreatePostRequest{
			Caption:      "x",
			Platforms:    []string{"facebook"},
			ScheduledFor: time.Now().Add(-time.Hour),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/api/v1/posts", tt.req)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
			}
			if code := errorCode(t, rec); code != ErrCodeValidation {
				t.Errorf("code = %s, want %s", code, ErrCodeValidation)
			}
		})
	}
}

func TestCreatePostWithinGrace(t *testing.T) {
	mux := newTestHandler(newFakeStore(), &fakeControl{}, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/posts", CreatePostRequest{
		Caption:      "litt forsinket",
		Platforms:    []string{"facebook"},
		ScheduledFor: time.Now().Add(-time.Minute), // в пределах grace (2m)
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestCreatePostBadJSON(t *testing.T) {
	mux := newTestHandler(newFakeStore(), &fakeControl{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetPostNotFound(t *testing.T) {
	mux := newTestHandler(newFakeStore(), &fakeControl{}, nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/posts/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, rec); code != ErrCodeNotFound {
		t.Errorf("code = %s, want %s", code, ErrCodeNotFound)
	}
}

func TestUpdatePublishingConflict(t *testing.T) {
	store := newFakeStore()
	post := &domain.Post{
		ID:           uuid.New(),
		Caption:      "pågår",
		Platforms:    []string{"facebook"},
		ScheduledFor: time.Now(),
		Status:       domain.StatusPublishing,
	}
	cp := *post
	store.posts[post.ID] = &cp

	mux := newTestHandler(store, &fakeControl{}, nil)

	caption := "ny tekst"
	rec := doJSON(t, mux, http.MethodPut, "/api/v1/posts/"+post.ID.String(),
		UpdatePostRequest{Caption: &caption})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if code := errorCode(t, rec); code != ErrCodeConflict {
		t.Errorf("code = %s, want %s", code, ErrCodeConflict)
	}
}

func TestUpdateReschedulesFailedPost(t *testing.T) {
	store := newFakeStore()
	published := time.Now().Add(-time.Hour)
	post := &domain.Post{
		ID:           uuid.New(),
		Caption:      "feilet",
		Platforms:    []string{"facebook"},
		ScheduledFor: published,
		Status:       domain.StatusFailed,
		Results:      []domain.PublishResult{{Platform: "facebook", Error: "api down"}},
		PublishedAt:  &published,
	}
	cp := *post
	store.posts[post.ID] = &cp

	control := &fakeControl{}
	mux := newTestHandler(store, control, nil)

	at := time.Now().Add(time.Hour)
	rec := doJSON(t, mux, http.MethodPut, "/api/v1/posts/"+post.ID.String(),
		UpdatePostRequest{ScheduledFor: &at})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decodeData(t, rec)
	if got.Status != domain.StatusScheduled {
		t.Errorf("status = %s, want scheduled", got.Status)
	}
	if len(got.Results) != 0 {
		t.Errorf("results = %v, want cleared", got.Results)
	}
	if control.count() != 1 {
		t.Errorf("wakes = %d, want 1", control.count())
	}
}

func TestUpdateCaptionOfTerminalPost(t *testing.T) {
	store := newFakeStore()
	published := time.Now().Add(-time.Hour)
	post := &domain.Post{
		ID:           uuid.New(),
		Caption:      "gammel tekst",
		Platforms:    []string{"facebook"},
		ScheduledFor: published,
		Status:       domain.StatusPublished,
		PublishedAt:  &published,
	}
	cp := *post
	store.posts[post.ID] = &cp

	mux := newTestHandler(store, &fakeControl{}, nil)

	// Правка подписи без переноса времени не должна падать на том,
	// что scheduled_for у опубликованного поста давно в прошлом.
	caption := "rettet tekst"
	rec := doJSON(t, mux, http.MethodPut, "/api/v1/posts/"+post.ID.String(),
		UpdatePostRequest{Caption: &caption})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decodeData(t, rec)
	if got.Caption != caption {
		t.Errorf("caption = %q, want %q", got.Caption, caption)
	}
	if got.Status != domain.StatusPublished {
		t.Errorf("status = %s, want published (unchanged)", got.Status)
	}

	// Пустая подпись остаётся невалидной и для терминального поста.
	empty := ""
	rec = doJSON(t, mux, http.MethodPut, "/api/v1/posts/"+post.ID.String(),
		UpdatePostRequest{Caption: &empty})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty caption: status = %d, want 422", rec.Code)
	}
}

func TestDeletePost(t *testing.T) {
	store := newFakeStore()
	post := &domain.Post{
		ID:           uuid.New(),
		Caption:      "slett meg",
		Platforms:    []string{"facebook"},
		ScheduledFor: time.Now().Add(time.Hour),
		Status:       domain.StatusScheduled,
	}
	cp := *post
	store.posts[post.ID] = &cp

	mux := newTestHandler(store, &fakeControl{}, nil)

	rec := doJSON(t, mux, http.MethodDelete, "/api/v1/posts/"+post.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	// Повторное удаление идемпотентно.
	rec = doJSON(t, mux, http.MethodDelete, "/api/v1/posts/"+post.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestDeletePublishingConflict(t *testing.T) {
	store := newFakeStore()
	post := &domain.Post{
		ID:           uuid.New(),
		Caption:      "pågår",
		Platforms:    []string{"facebook"},
		ScheduledFor: time.Now(),
		Status:       domain.StatusPublishing,
	}
	cp := *post
	store.posts[post.ID] = &cp

	mux := newTestHandler(store, &fakeControl{}, nil)

	rec := doJSON(t, mux, http.MethodDelete, "/api/v1/posts/"+post.ID.String(), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListPostsByStatus(t *testing.T) {
	store := newFakeStore()
	for _, status := range []domain.PostStatus{domain.StatusScheduled, domain.StatusPublished} {
		p := &domain.Post{
			ID:           uuid.New(),
			Caption:      string(status),
			Platforms:    []string{"facebook"},
			ScheduledFor: time.Now(),
			Status:       status,
		}
		store.posts[p.ID] = p
	}

	mux := newTestHandler(store, &fakeControl{}, nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/posts?status=published", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data []PostResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Status != domain.StatusPublished {
		t.Errorf("data = %+v, want one published post", resp.Data)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/posts?status=nonsense", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status filter: status = %d", rec.Code)
	}
}

func TestCheckScheduled(t *testing.T) {
	due := domain.Post{
		ID:           uuid.New(),
		Caption:      "Frokosttilbud",
		Platforms:    []string{"facebook"},
		ScheduledFor: time.Now().Add(-time.Minute),
		Status:       domain.StatusScheduled,
	}
	control := &fakeControl{due: []domain.Post{due}}
	mux := newTestHandler(newFakeStore(), control, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/scheduler/check", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if control.checks != 1 {
		t.Errorf("checks = %d, want 1", control.checks)
	}

	var resp struct {
		Data CheckResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Due) != 1 || resp.Data.Due[0].ID != due.ID {
		t.Errorf("due = %+v, want the single due post", resp.Data.Due)
	}

	// Тот же запрос без новых due постов ничего не находит.
	control.mu.Lock()
	control.due = nil
	control.mu.Unlock()

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/scheduler/check", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second check: status = %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if len(resp.Data.Due) != 0 {
		t.Errorf("second check due = %+v, want empty", resp.Data.Due)
	}
}

func TestStreamEvents(t *testing.T) {
	dispatcher := notify.NewDispatcher()
	mux := newTestHandler(newFakeStore(), &fakeControl{}, dispatcher)

	server := httptest.NewServer(mux)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	postID := uuid.New()
	go func() {
		// Даём подписке SSE установиться.
		for dispatcher.Subscribers() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		dispatcher.Publish(notify.Notification{
			Type:   notify.EventPublished,
			PostID: postID,
			Title:  "Innlegg publisert",
		})
	}()

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}

	if event != string(notify.EventPublished) {
		t.Errorf("event = %q, want %s", event, notify.EventPublished)
	}
	var n notify.Notification
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		t.Fatalf("unmarshal event data: %v", err)
	}
	if n.PostID != postID {
		t.Errorf("PostID = %s, want %s", n.PostID, postID)
	}
}
