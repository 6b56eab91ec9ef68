// Package mq — RabbitMQ для Prospector.
//
// Брокер не является источником истины: вся работа живёт в Postgres и
// захватывается через claim. Сообщения только будят воркеры раньше,
// чем наступит очередной poll, и публикуют аудит interrupt'ов.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация wake-up и аудит-событий
//   - consumer.go   — потребление, WakeHandler для queue.Poller
//
// Типы сообщений:
//   - task.ready       — появились scrape-задачи
//   - delivery.ready   — появились доставки
//   - touch.ready      — появились касания
//   - lead.interrupted — лид ответил или записался, касания отменены
package mq
