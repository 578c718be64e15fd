package mq

import (
	"fmt"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges.
const (
	// ExchangePosts — topic-обменник событий жизненного цикла постов.
	// Routing keys: post.started, post.published, post.failed.
	ExchangePosts Exchange = "kreativposter.posts"

	// ExchangeScheduler — управляющий обменник планировщика.
	ExchangeScheduler Exchange = "kreativposter.scheduler"
)

// Queues.
const (
	// QueuePostEvents — все события постов, для внешних потребителей
	// (аналитика, CRM-интеграции).
	QueuePostEvents Queue = "posts.events"

	// QueueSchedulerWake — запросы внеочередного reconciliation-прохода.
	QueueSchedulerWake Queue = "scheduler.wake"
)

// Routing keys.
const (
	RoutingKeyPostAll RoutingKey = "post.*"
	RoutingKeyWake    RoutingKey = "wake"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Все объявления идемпотентны.
func SetupTopology(conn *Connection) error {
	ch := conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangePosts, "topic"},
		{ExchangeScheduler, "direct"},
	}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	for _, q := range []Queue{QueuePostEvents, QueueSchedulerWake} {
		if _, err := ch.QueueDeclare(string(q), true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueuePostEvents, RoutingKeyPostAll, ExchangePosts},
		{QueueSchedulerWake, RoutingKeyWake, ExchangeScheduler},
	}
	for _, b := range bindings {
		if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  KreativPoster RabbitMQ Topology:

    kreativposter.posts (topic)
    └── posts.events [routing: post.*]
            post.started / post.published / post.failed
            Consumers: external integrations

    kreativposter.scheduler (direct)
    └── scheduler.wake [routing: wake]
            Consumer: scheduler runner
  `
}
