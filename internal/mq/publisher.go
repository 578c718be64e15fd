package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kreativ/KreativPoster/internal/notify"
)

// Message — конверт сообщения в очереди.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения (совпадает с routing key).
	Type string `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch := p.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	err = ch.PublishWithContext(
		ctx,
		string(exchange),
		string(routingKey),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"type", msg.Type,
	)
	return nil
}

// PublishPostEvent публикует событие жизненного цикла поста.
// Routing key совпадает с типом события (post.started и т.д.).
func (p *Publisher) PublishPostEvent(ctx context.Context, n notify.Notification) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      string(n.Type),
		Payload:   n,
		Timestamp: n.Time,
	}
	return p.Publish(ctx, ExchangePosts, RoutingKey(n.Type), msg)
}

// PublishWake публикует запрос внеочередного прохода планировщика.
func (p *Publisher) PublishWake(ctx context.Context) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      string(RoutingKeyWake),
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeScheduler, RoutingKeyWake, msg)
}
