// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (хранилища, сервисы, publisher, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — logging, recovery, проверка HMAC-подписи webhook'ов
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response) с тегами validator
//   - task_handler.go     — claim RPC и команды над /tasks
//   - delivery_handler.go — /deliveries
//   - lead_handler.go     — /leads, /touches
//   - schedule_handler.go — /schedules
//   - webhook_handler.go  — /webhooks/inbound
//
// Claim RPC (/tasks/claim, /tasks/{id}/finish) даёт воркерам вне сети БД
// тот же контракт, что и queue.TaskQueue.
package api
