package mq

import (
	"context"
	"log/slog"

	"github.com/kreativ/KreativPoster/internal/notify"
)

// Bridge пересылает события notify.Dispatcher в RabbitMQ.
//
// Подписка буферизована: если брокер недоступен и буфер переполнился,
// события теряются — как и для любого другого подписчика. Внешние
// потребители, которым нужна полнота, читают состояние постов из API.
type Bridge struct {
	dispatcher *notify.Dispatcher
	publisher  *Publisher
	logger     *slog.Logger
	buffer     int
}

// NewBridge создаёт мост между Dispatcher и Publisher.
func NewBridge(dispatcher *notify.Dispatcher, publisher *Publisher, logger *slog.Logger) *Bridge {
	return &Bridge{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		buffer:     64,
	}
}

// Run пересылает события до отмены ctx.
func (b *Bridge) Run(ctx context.Context) error {
	events, unsub := b.dispatcher.Subscribe(b.buffer)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-events:
			if !ok {
				return nil
			}
			if err := b.publisher.PublishPostEvent(ctx, n); err != nil {
				b.logger.Warn("failed to forward event to broker",
					"type", n.Type, "post_id", n.PostID, "error", err)
			}
		}
	}
}
