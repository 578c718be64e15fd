package publish

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kreativ/KreativPoster/internal/domain"
)

// Simulator — публикатор-заглушка, имитирующий внешний API платформы.
//
// Используется пока не подключены реальные интеграции: публикация
// занимает Latency и завершается успехом с вероятностью SuccessRate.
type Simulator struct {
	name        string
	latency     time.Duration
	successRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// SimulatorOption настраивает Simulator.
type SimulatorOption func(*Simulator)

// WithLatency задаёт имитируемую задержку ответа платформы.
func WithLatency(d time.Duration) SimulatorOption {
	return func(s *Simulator) { s.latency = d }
}

// WithSuccessRate задаёт вероятность успешной публикации в [0, 1].
func WithSuccessRate(rate float64) SimulatorOption {
	return func(s *Simulator) { s.successRate = rate }
}

// WithSeed задаёт seed генератора — для воспроизводимых тестов.
func WithSeed(seed int64) SimulatorOption {
	return func(s *Simulator) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewSimulator создаёт симулятор платформы.
// По умолчанию: задержка 1 секунда, успех в 90% случаев.
func NewSimulator(name string, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		name:        name,
		latency:     time.Second,
		successRate: 0.9,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name возвращает имя платформы.
func (s *Simulator) Name() string {
	return s.name
}

// Publish имитирует публикацию: ждёт latency (уважая ctx),
// затем бросает монетку.
func (s *Simulator) Publish(ctx context.Context, post *domain.Post) error {
	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()

	if roll >= s.successRate {
		return fmt.Errorf("%w: %s", ErrPublishRejected, s.name)
	}
	return nil
}
