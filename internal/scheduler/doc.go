// Package scheduler реализует reconciliation-цикл публикации постов.
//
// Scheduler находит посты с наступившим scheduled_for, захватывает
// lease на каждый, публикует на платформы и фиксирует терминальный
// статус. Runner запускает проходы по трём независимым триггерам:
//
//   - tick — периодический тикер (TICK_INTERVAL)
//   - wake — явный запрос: API, создание поста, сообщение из MQ
//   - cron — грубый страховочный будильник (WAKE_CRON)
//
// Структура:
//   - scheduler.go — Reconcile, processPost, политика retry
//   - triggers.go  — Runner: тикер, Wake(), cron, retention sweep
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Store:     postRepo,
//	    Publisher: orchestrator,
//	    Notifier:  dispatcher,
//	    Logger:    logger,
//	})
//	runner := scheduler.NewRunner(scheduler.RunnerConfig{Scheduler: sched})
//	go runner.Run(ctx)
//	runner.Wake(scheduler.TriggerWake) // после создания поста
//
// Конкурентность:
//
// Проходы могут идти одновременно (несколько триггеров, несколько
// реплик) — координация только через lease в хранилище. Выигравший
// AcquireLease публикует, проигравший пропускает пост. Упавший посреди
// публикации держатель восстанавливается перехватом истёкшего lease.
// Внутри прохода независимые посты публикуются параллельно,
// Parallelism штук одновременно.
package scheduler
