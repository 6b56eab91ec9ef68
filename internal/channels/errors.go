package channels

import "errors"

// Ошибки каналов.
var (
	// ErrNoSender — для канала не зарегистрирован отправитель.
	ErrNoSender = errors.New("no sender for channel")

	// ErrNoRecipient — у лида нет адреса для канала.
	ErrNoRecipient = errors.New("lead has no recipient for channel")

	// ErrProvider — провайдер отклонил сообщение.
	ErrProvider = errors.New("channel provider error")

	// ErrTemplateParse — шаблон сообщения не разбирается.
	ErrTemplateParse = errors.New("message template parse failed")

	// ErrTemplateRender — шаблон сообщения не рендерится для лида.
	ErrTemplateRender = errors.New("message template render failed")
)
