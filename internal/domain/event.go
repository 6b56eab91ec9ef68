package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind — классификация входящего события.
type EventKind string

const (
	// EventInboundMessage — лид ответил (любой канал).
	EventInboundMessage EventKind = "inbound_message"

	// EventAppointmentBooked — лид записался на встречу.
	EventAppointmentBooked EventKind = "appointment_booked"

	// EventDeliveryStatus — статус доставки касания от провайдера.
	EventDeliveryStatus EventKind = "delivery_status"
)

// IsInterrupt — событие останавливает outreach.
func (k EventKind) IsInterrupt() bool {
	return k == EventInboundMessage || k == EventAppointmentBooked
}

// InboundEvent — входящий webhook.
//
// Доставка at-least-once: EventID используется как ключ дедупликации.
type InboundEvent struct {
	EventID   string    `json:"event_id"`
	AccountID uuid.UUID `json:"account_id"`
	Kind      EventKind `json:"kind"`

	// Идентификация лида: LeadID или контакт (Email/Phone) внутри аккаунта.
	LeadID *uuid.UUID `json:"lead_id,omitempty"`
	Email  string     `json:"email,omitempty"`
	Phone  string     `json:"phone,omitempty"`

	Channel Channel `json:"channel,omitempty"`

	// Для delivery_status.
	TouchID *uuid.UUID `json:"touch_id,omitempty"`
	Status  string     `json:"status,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// Interrupt — атомарная операция над лидом: сменить состояние и отменить касания.
type Interrupt struct {
	LeadID     uuid.UUID
	Target     LeadState
	LeadStatus string

	// Reason — тег причины, записывается в touch_runs.error и meta.cancel_reason.
	Reason string

	// EventID/Kind — для журнала входящих событий (пусто — не журналировать).
	EventID string
	Kind    EventKind
}

// InterruptResult — итог interrupt'а.
type InterruptResult struct {
	// Deduped — событие с таким EventID уже применялось.
	Deduped bool `json:"deduped"`

	// StateChanged — состояние лида изменилось.
	StateChanged bool `json:"state_changed"`

	// State — состояние лида после операции.
	State LeadState `json:"state"`

	// Canceled — сколько касаний отменено.
	Canceled int64 `json:"canceled"`
}

// Причины отмены касаний.
const (
	CancelReasonReplied = "interrupt:inbound_reply"
	CancelReasonBooked  = "interrupt:appointment_booked"
)

// CancelReasonForState — причина отмены касаний при ручной смене состояния лида.
func CancelReasonForState(to LeadState) string {
	return "lead_state:" + string(to)
}

// InterruptFor строит Interrupt для события.
// Для не-interrupt событий возвращает false.
func InterruptFor(leadID uuid.UUID, ev InboundEvent) (Interrupt, bool) {
	switch ev.Kind {
	case EventInboundMessage:
		return Interrupt{
			LeadID:     leadID,
			Target:     LeadStateEngaged,
			LeadStatus: LeadStatusReplied,
			Reason:     CancelReasonReplied,
			EventID:    ev.EventID,
			Kind:       ev.Kind,
		}, true
	case EventAppointmentBooked:
		return Interrupt{
			LeadID:     leadID,
			Target:     LeadStateBooked,
			LeadStatus: LeadStatusBooked,
			Reason:     CancelReasonBooked,
			EventID:    ev.EventID,
			Kind:       ev.Kind,
		}, true
	default:
		return Interrupt{}, false
	}
}

// NextLeadStatus вычисляет lead_status после interrupt'а.
// Повтор события статус не трогает; новое событие выставляет свой статус,
// даже если состояние лида не изменилось.
func NextLeadStatus(current string, in Interrupt, deduped bool) string {
	if deduped || in.LeadStatus == "" {
		return current
	}
	return in.LeadStatus
}

// NextState вычисляет состояние лида после interrupt'а.
//
// Interrupt не откатывает лид назад: ответ от уже booked лида оставляет booked.
// dead-лид, который ответил, снова становится engaged.
func NextState(current, target LeadState) LeadState {
	if current == LeadStateDead {
		return target
	}
	if current.Rank() >= target.Rank() {
		return current
	}
	return target
}
