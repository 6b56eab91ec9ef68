package domain

// TaskStatus — статус scrape-задачи.
//
// Жизненный цикл:
//
//	queued → claimed → done
//	                 ↘ failed (может быть requeue → обратно в queued)
//
// claimed без finish дольше visibility timeout снова становится доступен для claim.
type TaskStatus string

const (
	// TaskStatusQueued — задача в очереди, ожидает claim.
	TaskStatusQueued TaskStatus = "queued"

	// TaskStatusClaimed — задача захвачена воркером.
	TaskStatusClaimed TaskStatus = "claimed"

	// TaskStatusDone — задача выполнена (включая мягкий отказ по policy).
	TaskStatusDone TaskStatus = "done"

	// TaskStatusFailed — задача завершилась ошибкой.
	TaskStatusFailed TaskStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusDone, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// TaskType — тип scrape-задачи.
type TaskType string

const (
	// TaskTypeDiscover — обход индекса объявлений города, порождает detail-задачи.
	TaskTypeDiscover TaskType = "discover"

	// TaskTypeDetail — разбор одного объявления.
	TaskTypeDetail TaskType = "detail"
)

// Valid проверяет, что тип известен.
func (t TaskType) Valid() bool {
	return t == TaskTypeDiscover || t == TaskTypeDetail
}

// DeliveryStatus — статус доставки в CRM webhook.
//
// Жизненный цикл:
//
//	queued → sending → sent
//	                 ↘ failed → (next_attempt_at) → sending ...
//	                 ↘ dead (исчерпан лимит попыток)
type DeliveryStatus string

const (
	DeliveryStatusQueued  DeliveryStatus = "queued"
	DeliveryStatusSending DeliveryStatus = "sending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"

	// DeliveryStatusDead — доставка больше не повторяется.
	DeliveryStatusDead DeliveryStatus = "dead"
)

// IsTerminal возвращает true, если доставка больше не будет claim'иться.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusSent || s == DeliveryStatusDead
}

// TouchStatus — статус одного касания (TouchRun).
//
// Жизненный цикл:
//
//	queued → scheduled → executing → sent
//	                               ↘ failed
//	(любой нетерминальный) → canceled
type TouchStatus string

const (
	TouchStatusQueued    TouchStatus = "queued"
	TouchStatusScheduled TouchStatus = "scheduled"
	TouchStatusExecuting TouchStatus = "executing"
	TouchStatusSent      TouchStatus = "sent"
	TouchStatusFailed    TouchStatus = "failed"
	TouchStatusCanceled  TouchStatus = "canceled"
)

// NonTerminalTouchStatuses — статусы, которые interrupt обязан отменить.
var NonTerminalTouchStatuses = []TouchStatus{
	TouchStatusQueued,
	TouchStatusScheduled,
	TouchStatusExecuting,
}

// IsTerminal возвращает true, если касание уже не может измениться.
func (s TouchStatus) IsTerminal() bool {
	switch s {
	case TouchStatusSent, TouchStatusFailed, TouchStatusCanceled:
		return true
	default:
		return false
	}
}

// Channel — канал касания.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelVoice    Channel = "voice"
)

// Valid проверяет, что канал известен.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelWhatsApp, ChannelVoice:
		return true
	default:
		return false
	}
}

// LeadState — каноническое состояние лида.
//
// Обычный поток:
//
//	new → enriched → attempting → engaged → qualified → booked
//	(любое) → dead
//
// Interrupt может перевести лид в engaged или booked вне очереди.
type LeadState string

const (
	LeadStateNew        LeadState = "new"
	LeadStateEnriched   LeadState = "enriched"
	LeadStateAttempting LeadState = "attempting"
	LeadStateEngaged    LeadState = "engaged"
	LeadStateQualified  LeadState = "qualified"
	LeadStateBooked     LeadState = "booked"
	LeadStateDead       LeadState = "dead"
)

// Rank возвращает порядковый номер состояния в обычном потоке.
// dead вне порядка и имеет ранг -1.
func (s LeadState) Rank() int {
	switch s {
	case LeadStateNew:
		return 0
	case LeadStateEnriched:
		return 1
	case LeadStateAttempting:
		return 2
	case LeadStateEngaged:
		return 3
	case LeadStateQualified:
		return 4
	case LeadStateBooked:
		return 5
	default:
		return -1
	}
}

// Contactable — можно ли планировать новые касания.
func (s LeadState) Contactable() bool {
	switch s {
	case LeadStateNew, LeadStateEnriched, LeadStateAttempting:
		return true
	default:
		return false
	}
}

// CanTransition проверяет переход в обычном потоке (только вперёд, dead — из любого).
func (s LeadState) CanTransition(to LeadState) bool {
	if to == LeadStateDead {
		return s != LeadStateDead
	}
	if s == LeadStateDead {
		return false
	}
	return to.Rank() > s.Rank()
}

// ParseLeadState парсит строку в LeadState.
func ParseLeadState(s string) (LeadState, bool) {
	st := LeadState(s)
	if st.Rank() >= 0 || st == LeadStateDead {
		return st, true
	}
	return "", false
}

// Значения lead_status.
const (
	LeadStatusReplied = "REPLIED"
	LeadStatusBooked  = "BOOKED"
)
