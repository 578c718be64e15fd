// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//   - bridge.go     — пересылка событий notify.Dispatcher в брокер
//
// Exchanges:
//   - kreativposter.posts (topic)      — события постов
//     routing keys: post.started, post.published, post.failed
//   - kreativposter.scheduler (direct) — управление планировщиком
//     routing key: wake
//
// Брокер опционален: при пустом AMQP_URL сервер работает без него,
// события остаются доступны через SSE.
package mq
