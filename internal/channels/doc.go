// Package channels отправляет касания лидам через внешних провайдеров.
//
//	email              → SESSender (Amazon SES v2)
//	sms/whatsapp/voice → HTTPSender (HTTP-шлюз провайдера)
//	dry-run            → LogSender
//
// Sender не меняет статус касания: это делает cadence.Dispatcher по результату Send.
package channels
