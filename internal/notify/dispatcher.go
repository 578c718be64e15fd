package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kreativ/KreativPoster/internal/telemetry"
)

// Dispatcher — in-memory fan-out уведомлений по подписчикам.
//
// Контракт:
//   - Publish никогда не блокируется.
//   - Подписчики получают буферизованные каналы.
//   - Медленный подписчик теряет события (bounded backpressure),
//     остальных это не касается.
//
// Доставка best-effort, не более одного раза: потерянное событие
// не повторяется, состояние поста всегда можно перечитать из хранилища.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[uint64]chan Notification
	seq  atomic.Uint64
}

// NewDispatcher создаёт пустой Dispatcher.
// Фоновых горутин не держит.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: map[uint64]chan Notification{}}
}

// Publish рассылает событие всем подписчикам без блокировки.
// Переполненный буфер подписчика означает потерю события у него.
func (d *Dispatcher) Publish(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	// Снимок подписчиков, чтобы не держать lock во время отправок.
	d.mu.RLock()
	chs := make([]chan Notification, 0, len(d.subs))
	for _, ch := range d.subs {
		chs = append(chs, ch)
	}
	d.mu.RUnlock()

	for _, ch := range chs {
		// Конкурентный unsubscribe может закрыть канал —
		// гасим возможную панику send on closed channel.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- n:
			default:
				telemetry.NotificationsDropped.Inc()
			}
		}()
	}
}

// Subscribe регистрирует подписчика и возвращает канал событий
// вместе с функцией отписки. Отписка идемпотентна.
func (d *Dispatcher) Subscribe(buffer int) (<-chan Notification, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Notification, buffer)
	id := d.seq.Add(1)

	d.mu.Lock()
	d.subs[id] = ch
	d.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
			// Закрывать безопасно: Publish переживает панику отправки.
			close(ch)
		})
	}
	return ch, unsub
}

// Subscribers возвращает текущее число подписчиков.
func (d *Dispatcher) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}
