package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kreativ/KreativPoster/internal/domain"
	"github.com/kreativ/KreativPoster/internal/notify"
)

// PostStore — операции хранилища, нужные API.
// Реализуется repo.PostRepo.
type PostStore interface {
	Put(ctx context.Context, post *domain.Post) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	Update(ctx context.Context, post *domain.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByStatus(ctx context.Context, status domain.PostStatus) ([]domain.Post, error)
}

// SchedulerControl — управление планировщиком из API.
// Реализуется scheduler.Runner.
type SchedulerControl interface {
	Wake(trigger string)
	CheckNow(ctx context.Context) ([]domain.Post, error)
}

// EventSource — подписка на события для SSE.
// Реализуется notify.Dispatcher.
type EventSource interface {
	Subscribe(buffer int) (<-chan notify.Notification, func())
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store     PostStore
	scheduler SchedulerControl
	events    EventSource
	grace     time.Duration
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Store     PostStore
	Scheduler SchedulerControl // опционален
	Events    EventSource      // опционален, без него нет SSE
	Grace     time.Duration    // допуск для scheduled_for в прошлом
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		store:     cfg.Store,
		scheduler: cfg.Scheduler,
		events:    cfg.Events,
		grace:     cfg.Grace,
		logger:    cfg.Logger,
	}
}

// wake запрашивает внеочередной проход планировщика, если он подключён.
func (h *Handler) wake(trigger string) {
	if h.scheduler != nil {
		h.scheduler.Wake(trigger)
	}
}
