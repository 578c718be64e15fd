package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/kreativ/KreativPoster/internal/domain"
)

// EventType — тип события жизненного цикла поста.
type EventType string

const (
	// EventPublishStarted — публикация поста началась.
	EventPublishStarted EventType = "post.started"

	// EventPublished — пост опубликован (хотя бы одна платформа успешна).
	EventPublished EventType = "post.published"

	// EventPublishFailed — публикация провалилась на всех платформах.
	EventPublishFailed EventType = "post.failed"
)

// Notification — событие для подписчиков (SSE-клиенты, MQ, алерты).
//
// Данные маленькие и JSON-сериализуемые: событие уходит как в
// браузерный поток, так и в брокер.
type Notification struct {
	Type    EventType              `json:"type"`
	PostID  uuid.UUID              `json:"post_id"`
	Title   string                 `json:"title,omitempty"`
	Body    string                 `json:"body,omitempty"`
	Icon    string                 `json:"icon,omitempty"`
	Results []domain.PublishResult `json:"results,omitempty"`
	Time    time.Time              `json:"time"`
}
