package delivery

import "errors"

// Ошибки доставки.
var (
	// ErrNoWebhookURL — не задан адрес CRM webhook.
	ErrNoWebhookURL = errors.New("delivery webhook url is not configured")

	// ErrPost — запрос к webhook не выполнен (сеть, таймаут).
	ErrPost = errors.New("webhook post failed")
)
