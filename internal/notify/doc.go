// Package notify рассылает события жизненного цикла постов.
//
// Dispatcher — in-memory fan-out: планировщик публикует события,
// подписчики (SSE-клиенты, мост в RabbitMQ) читают их из буферизованных
// каналов. Доставка best-effort и не блокирует публикацию: медленный
// подписчик теряет события, источник истины — хранилище постов.
//
// alert.go собирает пользовательские тексты уведомлений.
package notify
