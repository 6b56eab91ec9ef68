// Package repo — хранилище Prospector на Postgres (pgx).
//
// # Таблицы
//
//   - tasks — scrape-задачи (discover/detail), claim-очередь
//   - leads — лиды, извлечённые из объявлений
//   - deliveries — пересылки лидов в CRM webhook, claim-очередь с backoff
//   - touch_runs — касания лидов по каналам
//   - inbound_events — журнал входящих webhook'ов для дедупликации
//   - schedules — расписания discover
//
// Схема встроена в бинарник (schema.sql) и применяется EnsureSchema.
//
// # Claim
//
// Все claim'ы — один запрос: CTE с FOR UPDATE SKIP LOCKED + UPDATE ... RETURNING.
// Конкурентные воркеры не блокируют друг друга и не получают одну строку дважды.
//
// # Interrupt
//
// LeadRepo.ApplyInterrupt меняет состояние лида и отменяет его касания в одной
// транзакции. После коммита у лида нет queued/scheduled/executing касаний.
package repo
