// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog (JSON, LOG_LEVEL), помощники
//     WithWorkerID/WithTaskID/WithLeadID/WithComponent
//   - metrics.go — Prometheus метрики: задачи скрейпера, доставки, касания,
//     interrupt'ы, навигация браузера
//
// Все бинарники пишут логи в одном формате и экспортируют метрики на /metrics.
package telemetry
