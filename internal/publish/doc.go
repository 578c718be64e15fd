// Package publish выполняет публикацию постов на платформы.
//
// Архитектура:
//   - PlatformPublisher — интерфейс публикации на одну платформу
//   - Registry — реестр публикаторов по имени платформы
//   - Simulator — заглушка внешнего API (пока нет реальных интеграций)
//   - Orchestrator — конкурентный fan-out на все платформы поста
//
// Ключевой инвариант: провал или таймаут одной платформы никогда
// не прерывает публикацию на остальных. Исходы платформ — данные
// (PublishResult), агрегатный статус поста считает Outcome.
package publish
