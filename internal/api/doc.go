// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go        — Handler с DI (хранилище, планировщик, события)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (logging, recovery)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects (request/response)
//   - post_handler.go   — обработчики для /posts и /scheduler/check
//   - events_handler.go — SSE-поток событий /events
//
// API предоставляет REST endpoints для управления запланированными
// постами и поток событий их публикации.
package api
