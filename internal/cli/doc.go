// Package cli реализует инструмент командной строки Prospector.
//
// # Обзор
//
// CLI — клиентская утилита оператора. Работает через HTTP API,
// не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Prospector API: конверты DataResponse/ListResponse/ErrorResponse,
// подпись входящих событий HMAC-SHA256 для /webhooks/inbound.
//
//	client := cli.NewClient("http://localhost:8080")
//	tasks, err := client.ListTasks(cli.ListOpts{Status: "failed"})
//
// ## Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные идут в stdout, сообщения в stderr:
//
//	prospector task list --status failed --json | jq '.[].id'
//
// ## Commands
//
//   - task: list, show, discover, reclaim, requeue
//   - delivery: list, enqueue
//   - lead: show, state, enroll, touches, send, execute
//   - webhook: send
//   - schedule: list, create, show, update, delete, enable, disable
//
// Группы создаются фабриками (NewTaskCmd и т.д.), принимающими clientFn и outputFn:
// Client и Output создаются лениво, после разбора PersistentFlags.
package cli
