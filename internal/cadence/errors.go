package cadence

import "errors"

// Ошибки cadence.
var (
	// ErrTouchCanceled — касание нельзя выполнить: отменено, уже выполнено
	// или лид больше не contactable.
	ErrTouchCanceled = errors.New("touch canceled or not executable")

	// ErrLeadNotContactable — лид в engaged/qualified/booked/dead.
	ErrLeadNotContactable = errors.New("lead is not contactable")

	// ErrEmptyCampaign — кампания без шагов.
	ErrEmptyCampaign = errors.New("campaign has no steps")

	// ErrInvalidStep — шаг кампании с неизвестным каналом или отрицательной задержкой.
	ErrInvalidStep = errors.New("invalid campaign step")
)
