package domain

import (
	"time"

	"github.com/google/uuid"
)

// AdHocStepBase — начало зарезервированного диапазона step для разовых и тестовых отправок.
const AdHocStepBase = 1000

// TouchRun — одно запланированное исходящее сообщение лиду.
//
// Создаётся Builder'ом при записи лида в кампанию,
// продвигается Dispatcher'ом, отменяется interrupt'ом.
type TouchRun struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	LeadID     uuid.UUID  `json:"lead_id"`
	CampaignID *uuid.UUID `json:"campaign_id,omitempty"`

	// Step — порядковый номер в cadence (>= AdHocStepBase для ad-hoc).
	Step int `json:"step"`

	Channel Channel     `json:"channel"`
	Status  TouchStatus `json:"status"`

	// Payload — содержимое сообщения (subject, body, template, ...).
	Payload map[string]any `json:"payload,omitempty"`

	ScheduledAt time.Time  `json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Meta — служебные данные: provider_id, cancel_reason, ...
	Meta map[string]any `json:"meta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdHoc — разовая отправка вне cadence.
func (t *TouchRun) IsAdHoc() bool {
	return t.Step >= AdHocStepBase
}

// IsCancelable — можно ли отменить касание.
func (t *TouchRun) IsCancelable() bool {
	return !t.Status.IsTerminal()
}

// IsDue — пора ли выполнять.
func (t *TouchRun) IsDue(now time.Time) bool {
	if t.Status != TouchStatusQueued && t.Status != TouchStatusScheduled {
		return false
	}
	return !t.ScheduledAt.After(now)
}

// Campaign — план касаний.
type Campaign struct {
	ID        uuid.UUID     `json:"id"`
	AccountID uuid.UUID     `json:"account_id"`
	Name      string        `json:"name"`
	Steps     []CadenceStep `json:"steps"`
}

// CadenceStep — один шаг cadence.
type CadenceStep struct {
	// Offset — задержка от момента записи в кампанию.
	Offset time.Duration `json:"offset"`

	Channel Channel        `json:"channel"`
	Payload map[string]any `json:"payload,omitempty"`
}
