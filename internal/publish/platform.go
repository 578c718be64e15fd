package publish

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kreativ/KreativPoster/internal/domain"
)

// PlatformPublisher — публикация поста на одну конкретную платформу.
//
// Возвращённая ошибка означает провал публикации именно на этой
// платформе; оркестратор превращает её в PublishResult и никогда
// не прерывает из-за неё публикации на остальных платформах.
type PlatformPublisher interface {
	// Name возвращает идентификатор платформы ("facebook", "instagram", ...).
	Name() string

	// Publish публикует пост. ctx несёт таймаут на одну платформу.
	Publish(ctx context.Context, post *domain.Post) error
}

// Registry — реестр публикаторов по имени платформы.
// Потокобезопасен.
type Registry struct {
	mu         sync.RWMutex
	publishers map[string]PlatformPublisher
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		publishers: make(map[string]PlatformPublisher),
	}
}

// DefaultRegistry создаёт реестр с симуляторами стандартных платформ.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, name := range []string{"facebook", "instagram", "twitter", "linkedin"} {
		r.Register(NewSimulator(name))
	}
	return r
}

// Register регистрирует публикатор.
// Существующий публикатор той же платформы перезаписывается.
func (r *Registry) Register(p PlatformPublisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers[p.Name()] = p
}

// Get возвращает публикатор по имени платформы.
// Возвращает ErrUnknownPlatform, если платформа не зарегистрирована.
func (r *Registry) Get(platform string) (PlatformPublisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.publishers[platform]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return p, nil
}

// Platforms возвращает отсортированный список зарегистрированных платформ.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
