package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ошибки валидации поста.
var (
	// ErrNoPlatforms — пустой список целевых платформ.
	ErrNoPlatforms = errors.New("post has no target platforms")

	// ErrEmptyCaption — пустой текст поста.
	ErrEmptyCaption = errors.New("post caption is empty")

	// ErrZeroSchedule — время публикации не задано.
	ErrZeroSchedule = errors.New("scheduled_for is not set")

	// ErrScheduleInPast — время публикации в прошлом за пределами grace-окна.
	ErrScheduleInPast = errors.New("scheduled_for is in the past")
)

// PublishResult — исход попытки публикации на одной платформе.
//
// Порядок элементов в Post.Results совпадает с порядком Post.Platforms;
// после попытки публикации len(Results) == len(Platforms).
type PublishResult struct {
	// Platform — идентификатор платформы ("instagram", "tiktok", ...).
	Platform string `json:"platform"`

	// Success — платформа приняла пост.
	Success bool `json:"success"`

	// Error — текст ошибки платформы при неудаче.
	Error string `json:"error,omitempty"`
}

// Post — запланированный к публикации пост.
//
// Post создаётся командой SchedulePost и дальше мутирует двумя путями:
// внешними командами update/delete (контент и время, пока статус позволяет)
// и планировщиком (статус, lease, результаты публикации).
type Post struct {
	// ID — уникальный идентификатор поста. Выдаётся при создании, неизменяем.
	ID uuid.UUID `json:"id"`

	// Caption — текст поста.
	Caption string `json:"caption"`

	// ImageURL — ссылка на изображение поста (опционально).
	ImageURL string `json:"image_url,omitempty"`

	// Platforms — непустой список целевых платформ.
	Platforms []string `json:"platforms"`

	// ScheduledFor — момент, после которого пост подлежит публикации.
	// Мутируется только пока Status == scheduled.
	ScheduledFor time.Time `json:"scheduled_for"`

	// Status — текущий статус поста.
	Status PostStatus `json:"status"`

	// Results — результаты по платформам последней попытки публикации.
	// Пуст, пока пост scheduled.
	Results []PublishResult `json:"publish_results,omitempty"`

	// PublishedAt — момент первого перехода в терминальный статус.
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// LeaseToken — токен текущего reconciliation-прохода.
	// Заполнен только пока Status == publishing.
	LeaseToken *uuid.UUID `json:"-"`

	// LeaseExpiry — срок действия lease. После истечения пост считается
	// брошенным (держатель упал) и подлежит повторному захвату.
	LeaseExpiry *time.Time `json:"-"`

	// Attempt — номер попытки публикации (с 1). Растёт при каждом захвате lease.
	Attempt int `json:"attempt,omitempty"`

	// CreatedAt — время создания поста.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate проверяет пост перед постановкой в расписание.
// grace — допуск для scheduled_for в прошлом (пост "на сейчас" валиден).
func (p *Post) Validate(now time.Time, grace time.Duration) error {
	if err := p.ValidateContent(); err != nil {
		return err
	}
	if p.ScheduledFor.IsZero() {
		return ErrZeroSchedule
	}
	if p.ScheduledFor.Before(now.Add(-grace)) {
		return fmt.Errorf("%w: %s", ErrScheduleInPast, p.ScheduledFor.Format(time.RFC3339))
	}
	return nil
}

// ValidateContent проверяет содержимое поста без расписания.
// Для правки терминального поста: его scheduled_for уже в прошлом.
func (p *Post) ValidateContent() error {
	if len(p.Platforms) == 0 {
		return ErrNoPlatforms
	}
	for _, platform := range p.Platforms {
		if platform == "" {
			return fmt.Errorf("%w: empty platform id", ErrNoPlatforms)
		}
	}
	if p.Caption == "" {
		return ErrEmptyCaption
	}
	return nil
}

// IsDue проверяет, подлежит ли пост публикации.
func (p *Post) IsDue(now time.Time) bool {
	if p.Status != StatusScheduled {
		return false
	}
	return !p.ScheduledFor.After(now)
}

// LeaseExpired проверяет, истёк ли lease publishing-поста.
func (p *Post) LeaseExpired(now time.Time) bool {
	if p.Status != StatusPublishing || p.LeaseExpiry == nil {
		return false
	}
	return !p.LeaseExpiry.After(now)
}

// MarkPublishing переводит пост в publishing под указанным lease.
func (p *Post) MarkPublishing(token uuid.UUID, expiry time.Time) {
	p.Status = StatusPublishing
	p.LeaseToken = &token
	p.LeaseExpiry = &expiry
	p.Attempt++
	p.UpdatedAt = time.Now()
}

// MarkPublished переводит пост в published с результатами по платформам.
func (p *Post) MarkPublished(results []PublishResult) {
	now := time.Now()
	p.Status = StatusPublished
	p.Results = results
	p.PublishedAt = &now
	p.LeaseToken = nil
	p.LeaseExpiry = nil
	p.UpdatedAt = now
}

// MarkFailed переводит пост в failed с результатами по платформам.
func (p *Post) MarkFailed(results []PublishResult) {
	now := time.Now()
	p.Status = StatusFailed
	p.Results = results
	p.PublishedAt = &now
	p.LeaseToken = nil
	p.LeaseExpiry = nil
	p.UpdatedAt = now
}

// MarkRescheduled возвращает пост в scheduled на новое время (политика retry).
// Результаты прошлой попытки сбрасываются: scheduled-пост их не несёт.
func (p *Post) MarkRescheduled(at time.Time) {
	p.Status = StatusScheduled
	p.ScheduledFor = at
	p.Results = nil
	p.PublishedAt = nil
	p.LeaseToken = nil
	p.LeaseExpiry = nil
	p.UpdatedAt = time.Now()
}
