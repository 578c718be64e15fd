package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kreativ/KreativPoster/internal/domain"
	"github.com/kreativ/KreativPoster/internal/repo"
	"github.com/kreativ/KreativPoster/internal/scheduler"
)

// CreatePost планирует публикацию нового поста.
// POST /api/v1/posts
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	now := time.Now()
	post := &domain.Post{
		ID:           uuid.New(),
		Caption:      req.Caption,
		ImageURL:     req.ImageURL,
		Platforms:    req.Platforms,
		ScheduledFor: req.ScheduledFor,
		Status:       domain.StatusScheduled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := post.Validate(now, h.grace); err != nil {
		ValidationError(w, err.Error())
		return
	}

	if err := h.store.Put(r.Context(), post); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Пост со временем в прошлом (в пределах grace) должен уйти
	// немедленно, не дожидаясь тикера.
	h.wake(scheduler.TriggerWake)

	Created(w, PostFromDomain(post))
}

// GetPost возвращает пост по ID.
// GET /api/v1/posts/{id}
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid post id")
		return
	}

	post, err := h.store.Get(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "post not found") {
		return
	}

	Success(w, PostFromDomain(post))
}

// ListPosts возвращает посты, по умолчанию запланированные.
// GET /api/v1/posts?status=scheduled
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	status := domain.StatusScheduled
	if s := r.URL.Query().Get("status"); s != "" {
		status = domain.PostStatus(s)
		if !status.Valid() {
			BadRequest(w, "invalid status")
			return
		}
	}

	posts, err := h.store.ListByStatus(r.Context(), status)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]PostResponse, len(posts))
	for i := range posts {
		result[i] = PostFromDomain(&posts[i])
	}

	List(w, result, len(result))
}

// UpdatePost обновляет содержимое или расписание поста.
// Пост в статусе publishing трогать нельзя — 409.
// PUT /api/v1/posts/{id}
func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid post id")
		return
	}

	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	post, err := h.store.Get(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "post not found") {
		return
	}
	if post.Status == domain.StatusPublishing {
		Conflict(w, repo.ErrConflict.Error())
		return
	}

	if req.Caption != nil {
		post.Caption = *req.Caption
	}
	if req.ImageURL != nil {
		post.ImageURL = *req.ImageURL
	}
	if req.Platforms != nil {
		post.Platforms = req.Platforms
	}
	if req.ScheduledFor != nil {
		// Перенос времени возвращает пост в scheduled,
		// в том числе из терминального статуса.
		post.MarkRescheduled(*req.ScheduledFor)
	}

	// Расписание проверяется только когда его задали в запросе или
	// пост всё ещё ждёт публикации: правка содержимого терминального
	// поста не должна спотыкаться о его прошедший scheduled_for.
	now := time.Now()
	if req.ScheduledFor != nil || post.Status == domain.StatusScheduled {
		err = post.Validate(now, h.grace)
	} else {
		err = post.ValidateContent()
	}
	if err != nil {
		ValidationError(w, err.Error())
		return
	}
	post.UpdatedAt = now

	if err := h.store.Update(r.Context(), post); HandleRepoError(w, h.logger, err, "post not found") {
		return
	}

	h.wake(scheduler.TriggerWake)

	Success(w, PostFromDomain(post))
}

// DeletePost удаляет пост. Отсутствующий пост — тоже 204:
// удаление идемпотентно. Пост в публикации удалить нельзя — 409.
// DELETE /api/v1/posts/{id}
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid post id")
		return
	}

	err = h.store.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			Conflict(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// CheckScheduled выполняет немедленный синхронный проход планировщика
// и возвращает посты, найденные due на его начало.
// POST /api/v1/scheduler/check
func (h *Handler) CheckScheduled(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		Success(w, CheckResponse{Due: []PostResponse{}})
		return
	}

	due, err := h.scheduler.CheckNow(r.Context())
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	resp := CheckResponse{Due: make([]PostResponse, 0, len(due))}
	for i := range due {
		resp.Due = append(resp.Due, PostFromDomain(&due[i]))
	}
	Success(w, resp)
}
