package notify

import (
	"fmt"
	"strings"

	"github.com/kreativ/KreativPoster/internal/domain"
)

// Тексты пользовательских уведомлений (продукт локализован на норвежский).
const (
	titlePublished = "Innlegg publisert"
	titleFailed    = "Publisering feilet"

	defaultIcon = "/logo.png"
)

// PublishStarted собирает событие о начале публикации.
func PublishStarted(post *domain.Post) Notification {
	return Notification{
		Type:   EventPublishStarted,
		PostID: post.ID,
	}
}

// PublishFinished собирает пользовательское уведомление об исходе
// публикации по терминальному статусу поста.
func PublishFinished(post *domain.Post) Notification {
	if post.Status == domain.StatusPublished {
		return Notification{
			Type:    EventPublished,
			PostID:  post.ID,
			Title:   titlePublished,
			Body:    fmt.Sprintf("Innlegget %q ble publisert vellykket.", truncate(post.Caption, 50)),
			Icon:    icon(post),
			Results: post.Results,
		}
	}
	return Notification{
		Type:    EventPublishFailed,
		PostID:  post.ID,
		Title:   titleFailed,
		Body:    fmt.Sprintf("Kunne ikke publisere innlegget %q. %s", truncate(post.Caption, 40), failureReason(post)),
		Icon:    icon(post),
		Results: post.Results,
	}
}

func icon(post *domain.Post) string {
	if post.ImageURL != "" {
		return post.ImageURL
	}
	return defaultIcon
}

// failureReason возвращает первую ошибку платформы или "Ukjent feil".
func failureReason(post *domain.Post) string {
	for _, res := range post.Results {
		if !res.Success && res.Error != "" {
			return fmt.Sprintf("%s: %s", res.Platform, res.Error)
		}
	}
	return "Ukjent feil"
}

// truncate обрезает строку до max рун с многоточием.
func truncate(s string, max int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}
