// KreativPoster server — планировщик и публикатор постов.
//
// Объединяет HTTP API, reconciliation-цикл планировщика и (опционально)
// интеграцию с RabbitMQ в одном процессе.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kreativ/KreativPoster/internal/api"
	"github.com/kreativ/KreativPoster/internal/config"
	"github.com/kreativ/KreativPoster/internal/mq"
	"github.com/kreativ/KreativPoster/internal/notify"
	"github.com/kreativ/KreativPoster/internal/publish"
	"github.com/kreativ/KreativPoster/internal/repo"
	"github.com/kreativ/KreativPoster/internal/scheduler"
	"github.com/kreativ/KreativPoster/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting kreativposter-server")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	postRepo := repo.NewPostRepo(pool)
	dispatcher := notify.NewDispatcher()

	// Оркестратор публикации
	orchestrator := publish.New(publish.Config{
		Registry:    publish.DefaultRegistry(),
		Timeout:     cfg.PublishTimeout,
		Parallelism: cfg.Parallelism,
		Logger:      logger,
	})

	// Планировщик
	sched := scheduler.New(scheduler.Config{
		Store:     postRepo,
		Publisher: orchestrator,
		Notifier:  dispatcher,
		Retry: scheduler.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Delay:       cfg.RetryDelay,
		},
		LeaseTTL:    cfg.LeaseTTL(),
		BatchSize:   cfg.BatchLimit,
		Parallelism: cfg.Parallelism,
		Logger:      logger,
	})

	runner := scheduler.NewRunner(scheduler.RunnerConfig{
		Scheduler:     sched,
		TickInterval:  cfg.TickInterval,
		WakeCron:      cfg.WakeCron,
		Retention:     postRepo,
		RetentionCron: cfg.RetentionCron,
		RetentionAge:  cfg.RetentionAge,
		Logger:        logger,
	})

	go func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler runner stopped", "error", err)
			cancel()
		}
	}()

	// RabbitMQ опционален: без него события идут только в SSE.
	if cfg.AMQPURL != "" {
		startBroker(ctx, cfg.AMQPURL, dispatcher, runner, logger)
	} else {
		logger.Info("AMQP_URL not set, running without broker")
	}

	// HTTP API
	handler := api.NewHandler(api.Config{
		Store:     postRepo,
		Scheduler: runner,
		Events:    dispatcher,
		Grace:     cfg.GracePeriod,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// startBroker подключает RabbitMQ: топологию, мост событий
// и consumer wake-запросов. Недоступный при старте брокер не валит
// сервер — он работает без интеграции.
func startBroker(ctx context.Context, url string, dispatcher *notify.Dispatcher, runner *scheduler.Runner, logger *slog.Logger) {
	conn, err := mq.NewConnection(url, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ, continuing without broker", "error", err)
		return
	}

	if err := mq.SetupTopology(conn); err != nil {
		logger.Error("failed to setup RabbitMQ topology", "error", err)
		conn.Close()
		return
	}
	logger.Info("RabbitMQ topology ready")

	publisher := mq.NewPublisher(conn, logger)
	bridge := mq.NewBridge(dispatcher, publisher, logger)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("event bridge stopped", "error", err)
		}
	}()

	consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
		Queue: mq.QueueSchedulerWake,
		Handler: func(_ context.Context, _ *mq.Message) error {
			runner.Wake(scheduler.TriggerWake)
			return nil
		},
	})
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("wake consumer stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
}
