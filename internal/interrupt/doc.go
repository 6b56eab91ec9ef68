// Package interrupt обрабатывает входящие события от лидов и провайдеров.
//
//	inbound_message    → лид engaged, lead_status REPLIED, касания отменены
//	appointment_booked → лид booked, касания отменены
//	delivery_status    → статус провайдера в meta касания, без отмены
//
// Дедупликация по (account_id, event_id) выполняется в той же транзакции,
// что и смена состояния лида (repo.LeadRepo.ApplyInterrupt).
package interrupt
