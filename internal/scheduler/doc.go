// Package scheduler создаёт discover-задачи по расписаниям городов и
// обслуживает очереди.
//
// Структура:
//   - scheduler.go   — Scheduler.Tick: due-расписания → discover-задачи
//   - cron.go        — cron/interval, ключ идемпотентности (schedule_id + due time)
//   - maintenance.go — Reclaim протухших claim'ов, EnqueueMissing доставок, Promote касаний
//   - leader.go      — лидерство через pg_try_advisory_lock
//
// Tick и Maintenance.Run вызываются только лидером. Повторный Tick для того же
// due time не создаёт вторую задачу: ключ уникален в tasks.schedule_key.
package scheduler
