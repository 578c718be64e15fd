// Package cli реализует инструмент командной строки KreativPoster.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с KreativPoster API.
// Работает через HTTP, не импортирует внутренние пакеты сервера.
// Используется для управления запланированными постами и планировщиком.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для KreativPoster API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	posts, err := client.ListPosts("scheduled")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: kreativposter post list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - post: list, create, show, update, delete
//   - scheduler: check
//
// Каждая группа создаётся через фабричную функцию (NewPostCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
