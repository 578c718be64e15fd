package domain

// PostStatus — статус запланированного поста.
//
// Жизненный цикл:
//
//	scheduled → publishing → published
//	                       ↘ failed
//
// Возврат в scheduled возможен только явной командой update/reschedule
// (и только пока пост не publishing) либо политикой retry.
type PostStatus string

const (
	// StatusScheduled — пост ожидает наступления scheduled_for.
	StatusScheduled PostStatus = "scheduled"

	// StatusPublishing — пост захвачен reconciliation-проходом (lease держится).
	StatusPublishing PostStatus = "publishing"

	// StatusPublished — хотя бы одна платформа приняла пост.
	StatusPublished PostStatus = "published"

	// StatusFailed — все платформы отклонили пост (после всех retry).
	StatusFailed PostStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s PostStatus) IsTerminal() bool {
	switch s {
	case StatusPublished, StatusFailed:
		return true
	default:
		return false
	}
}

// Valid проверяет, что строка — известный статус.
func (s PostStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusPublishing, StatusPublished, StatusFailed:
		return true
	default:
		return false
	}
}
