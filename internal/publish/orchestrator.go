package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kreativ/KreativPoster/internal/domain"
	"github.com/kreativ/KreativPoster/internal/telemetry"
)

// Orchestrator выполняет fan-out публикации поста на все его платформы.
//
// Платформы публикуются конкурентно и независимо: провал одной никогда
// не отменяет и не прерывает остальные. Исход каждой платформы
// фиксируется отдельным PublishResult, агрегатный статус считается
// через Outcome.
type Orchestrator struct {
	registry    *Registry
	timeout     time.Duration
	parallelism int
	logger      *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Registry — реестр публикаторов платформ. Обязателен.
	Registry *Registry

	// Timeout — таймаут публикации на одну платформу.
	// По умолчанию 15 секунд.
	Timeout time.Duration

	// Parallelism — максимум одновременных публикаций одного поста.
	// По умолчанию 4.
	Parallelism int

	// Logger — structured logger. По умолчанию slog.Default().
	Logger *slog.Logger
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		registry:    cfg.Registry,
		timeout:     cfg.Timeout,
		parallelism: cfg.Parallelism,
		logger:      cfg.Logger,
	}
}

// Publish публикует пост на все платформы из post.Platforms.
//
// Возвращает по одному PublishResult на платформу, в порядке
// post.Platforms. Ошибки платформ — данные, а не ошибки вызова:
// error возвращается только при отмене ctx.
func (o *Orchestrator) Publish(ctx context.Context, post *domain.Post) ([]domain.PublishResult, error) {
	logger := telemetry.WithPostID(o.logger, post.ID.String())
	started := time.Now()

	results := make([]domain.PublishResult, len(post.Platforms))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)

	for i, platform := range post.Platforms {
		g.Go(func() error {
			results[i] = o.publishOne(ctx, post, platform)
			return nil
		})
	}

	// Горутины всегда возвращают nil, ждём все.
	_ = g.Wait()

	telemetry.PublishDuration.Observe(time.Since(started).Seconds())

	if err := ctx.Err(); err != nil {
		return results, err
	}

	for _, res := range results {
		outcome := "success"
		if !res.Success {
			outcome = "failure"
		}
		telemetry.PlatformPublishes.WithLabelValues(res.Platform, outcome).Inc()
	}
	logger.Info("publish fan-out complete",
		"platforms", len(results),
		"duration", time.Since(started))

	return results, nil
}

// publishOne публикует пост на одну платформу под собственным таймаутом.
// Паника публикатора поглощается в PublishResult: одна платформа
// не имеет права валить проход.
func (o *Orchestrator) publishOne(ctx context.Context, post *domain.Post, platform string) (res domain.PublishResult) {
	res = domain.PublishResult{Platform: platform}

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("publisher panic: %v", r)
			o.logger.Error("publisher panicked", "platform", platform, "panic", r)
		}
	}()

	publisher, err := o.registry.Get(platform)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	pubCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	err = publisher.Publish(pubCtx, post)
	switch {
	case err == nil:
		res.Success = true
	case errors.Is(err, context.DeadlineExceeded):
		res.Error = ErrPublishTimeout.Error()
	default:
		res.Error = err.Error()
	}

	if !res.Success {
		telemetry.WithPlatform(o.logger, platform).Warn("platform publish failed",
			"post_id", post.ID, "error", res.Error)
	}
	return res
}

// Outcome возвращает агрегатный статус по результатам платформ:
// published, если хотя бы одна платформа успешна, иначе failed.
func Outcome(results []domain.PublishResult) domain.PostStatus {
	for _, res := range results {
		if res.Success {
			return domain.StatusPublished
		}
	}
	return domain.StatusFailed
}
