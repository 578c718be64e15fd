package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kreativ/KreativPoster/internal/domain"
)

// Триггеры reconciliation-проходов.
const (
	TriggerTick = "tick" // периодический тикер
	TriggerWake = "wake" // явный запрос (API, создание поста, MQ)
	TriggerCron = "cron" // грубый страховочный будильник
)

// RetentionStore — удаление старых терминальных постов.
// Реализуется repo.PostRepo.
type RetentionStore interface {
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Runner гоняет Scheduler по трём независимым триггерам:
// тикер, явные wake-и и cron-будильник. Любой триггер запускает
// полный Reconcile; лишний проход по пустой выборке дёшев,
// пропущенный — нет.
type Runner struct {
	scheduler *Scheduler
	interval  time.Duration
	wakeCron  string
	logger    *slog.Logger

	retention     RetentionStore
	retentionCron string
	retentionAge  time.Duration

	wake chan string
}

// RunnerConfig — конфигурация Runner.
type RunnerConfig struct {
	Scheduler    *Scheduler
	TickInterval time.Duration // default: 30s
	WakeCron     string        // пусто — без cron-будильника

	// Retention терминальных постов. Все три поля опциональны;
	// sweep включается, когда заданы Retention и RetentionCron.
	Retention     RetentionStore
	RetentionCron string
	RetentionAge  time.Duration

	Logger *slog.Logger
}

// NewRunner создаёт Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runner{
		scheduler:     cfg.Scheduler,
		interval:      cfg.TickInterval,
		wakeCron:      cfg.WakeCron,
		logger:        cfg.Logger,
		retention:     cfg.Retention,
		retentionCron: cfg.RetentionCron,
		retentionAge:  cfg.RetentionAge,
		// Буфер 1: пока проход уже запрошен, новые wake-и схлопываются.
		wake: make(chan string, 1),
	}
}

// Wake запрашивает внеочередной проход. Не блокируется: если проход
// уже запрошен, повторный wake избыточен и отбрасывается.
func (r *Runner) Wake(trigger string) {
	if trigger == "" {
		trigger = TriggerWake
	}
	select {
	case r.wake <- trigger:
	default:
	}
}

// CheckNow выполняет синхронный проход, минуя очередь wake-ов,
// и возвращает найденные due посты. Конкурентный проход из другого
// триггера безопасен: посты делит lease.
func (r *Runner) CheckNow(ctx context.Context) ([]domain.Post, error) {
	return r.scheduler.CheckNow(ctx)
}

// Run крутит цикл триггеров до отмены ctx.
// Делает немедленный первый проход: после рестарта просроченные
// посты не должны ждать первого тика.
func (r *Runner) Run(ctx context.Context) error {
	c := cron.New()

	if r.wakeCron != "" {
		if _, err := c.AddFunc(r.wakeCron, func() { r.Wake(TriggerCron) }); err != nil {
			return fmt.Errorf("parse wake cron %q: %w", r.wakeCron, err)
		}
	}
	if r.retention != nil && r.retentionCron != "" {
		if _, err := c.AddFunc(r.retentionCron, func() { r.sweep(ctx) }); err != nil {
			return fmt.Errorf("parse retention cron %q: %w", r.retentionCron, err)
		}
	}

	c.Start()
	defer c.Stop()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.pass(ctx, TriggerWake)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.pass(ctx, TriggerTick)
		case trigger := <-r.wake:
			r.pass(ctx, trigger)
		}
	}
}

func (r *Runner) pass(ctx context.Context, trigger string) {
	if _, err := r.scheduler.Reconcile(ctx, trigger); err != nil && ctx.Err() == nil {
		r.logger.Error("reconcile pass failed", "trigger", trigger, "error", err)
	}
}

// sweep удаляет терминальные посты старше retentionAge.
func (r *Runner) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.retentionAge)
	deleted, err := r.retention.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Info("retention sweep completed", "deleted", deleted, "cutoff", cutoff)
	}
}
