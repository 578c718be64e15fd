package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/kreativ/KreativPoster/internal/domain"
)

// CreatePostRequest — запрос на план публикации поста.
type CreatePostRequest struct {
	Caption      string    `json:"caption"`
	ImageURL     string    `json:"image_url,omitempty"`
	Platforms    []string  `json:"platforms"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// UpdatePostRequest — запрос на обновление поста.
// Отсутствующие поля не меняются.
type UpdatePostRequest struct {
	Caption      *string    `json:"caption,omitempty"`
	ImageURL     *string    `json:"image_url,omitempty"`
	Platforms    []string   `json:"platforms,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// PostResponse — ответ с постом.
type PostResponse struct {
	ID           uuid.UUID              `json:"id"`
	Caption      string                 `json:"caption"`
	ImageURL     string                 `json:"image_url,omitempty"`
	Platforms    []string               `json:"platforms"`
	ScheduledFor time.Time              `json:"scheduled_for"`
	Status       domain.PostStatus      `json:"status"`
	Results      []domain.PublishResult `json:"results,omitempty"`
	PublishedAt  *time.Time             `json:"published_at,omitempty"`
	Attempt      int                    `json:"attempt,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// PostFromDomain конвертирует domain.Post в PostResponse.
func PostFromDomain(p *domain.Post) PostResponse {
	return PostResponse{
		ID:           p.ID,
		Caption:      p.Caption,
		ImageURL:     p.ImageURL,
		Platforms:    p.Platforms,
		ScheduledFor: p.ScheduledFor,
		Status:       p.Status,
		Results:      p.Results,
		PublishedAt:  p.PublishedAt,
		Attempt:      p.Attempt,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// CheckResponse — результат внеочередного прохода: посты,
// найденные due на его начало.
type CheckResponse struct {
	Due []PostResponse `json:"due"`
}
