package publish

import "errors"

// Ошибки публикации.
var (
	// ErrUnknownPlatform — нет публикатора для данной платформы.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrPublishTimeout — публикация на платформу превысила таймаут.
	ErrPublishTimeout = errors.New("publish timeout")

	// ErrPublishRejected — платформа отклонила публикацию.
	ErrPublishRejected = errors.New("publish rejected")
)
