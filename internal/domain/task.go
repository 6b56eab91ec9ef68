package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Task — единица scrape-работы.
//
// Task создаётся:
//   - командой оператора или scheduler'ом (discover)
//   - discover-задачей для каждого нового объявления (detail)
//
// Task никогда не удаляется — это аудит-след работы воркеров.
type Task struct {
	// ID — уникальный идентификатор task.
	ID uuid.UUID `json:"id"`

	// AccountID — аккаунт-владелец.
	AccountID uuid.UUID `json:"account_id"`

	// City — город (поддомен/регион источника).
	City string `json:"city"`

	// Type — discover или detail.
	Type TaskType `json:"task_type"`

	// Status — текущий статус.
	Status TaskStatus `json:"status"`

	// ExternalID — идентификатор объявления из URL.
	// Для detail всегда заполнен, для discover пуст.
	ExternalID string `json:"external_id,omitempty"`

	// ListingURL — URL объявления (detail) или индекса (discover, опционально).
	ListingURL string `json:"listing_url,omitempty"`

	// Attempts — количество claim'ов.
	Attempts int `json:"attempts"`

	// ClaimedBy — ID воркера, владеющего claim'ом.
	ClaimedBy string `json:"claimed_by,omitempty"`

	// ClaimedAt — время claim'а. Используется для visibility timeout.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	// LastError — причина последней неудачи (goto_timeout, blocked_403, ...).
	LastError string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDiscoverTask создаёт discover-задачу в статусе queued.
func NewDiscoverTask(accountID uuid.UUID, city, indexURL string) *Task {
	now := time.Now()
	return &Task{
		ID:         uuid.New(),
		AccountID:  accountID,
		City:       city,
		Type:       TaskTypeDiscover,
		Status:     TaskStatusQueued,
		ListingURL: indexURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewDetailTask создаёт detail-задачу для объявления.
func NewDetailTask(accountID uuid.UUID, city, externalID, listingURL string) *Task {
	now := time.Now()
	return &Task{
		ID:         uuid.New(),
		AccountID:  accountID,
		City:       city,
		Type:       TaskTypeDetail,
		Status:     TaskStatusQueued,
		ExternalID: externalID,
		ListingURL: listingURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsFinished возвращает true, если task завершён.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// IsStale проверяет, что claim протух (воркер, вероятно, упал).
func (t *Task) IsStale(now time.Time, visibility time.Duration) bool {
	if t.Status != TaskStatusClaimed || t.ClaimedAt == nil {
		return false
	}
	return now.Sub(*t.ClaimedAt) >= visibility
}

// Outcome — результат выполнения task, передаваемый в finish.
type Outcome struct {
	// Status — done или failed.
	Status TaskStatus `json:"status"`

	// Reason — машинно-читаемая причина (goto_timeout, blocked_503, rejected_commercial).
	Reason string `json:"reason,omitempty"`
}

// Причины завершения task.
const (
	ReasonGotoTimeout        = "goto_timeout"
	ReasonRejectedCommercial = "rejected_commercial"
	ReasonMissingContent     = "missing_content"
	ReasonBadRow             = "bad_row"
	ReasonPageCrash          = "page_crash"
	ReasonStoreError         = "store_error"
	ReasonBlockedPrefix      = "blocked_"
	ReasonHTTPPrefix         = "http_"
)

// Blocked — неудача из-за блокировки источником (403/503).
func Blocked(status int) Outcome {
	return Failed(ReasonBlockedPrefix + strconv.Itoa(status))
}

// Done — успешное завершение.
func Done() Outcome {
	return Outcome{Status: TaskStatusDone}
}

// SoftDone — завершение без ошибки, но с причиной (policy rejection).
func SoftDone(reason string) Outcome {
	return Outcome{Status: TaskStatusDone, Reason: reason}
}

// Failed — завершение с ошибкой.
func Failed(reason string) Outcome {
	return Outcome{Status: TaskStatusFailed, Reason: reason}
}

// IsRejection возвращает true для мягкого отказа по content policy.
func (o Outcome) IsRejection() bool {
	return o.Status == TaskStatusDone && o.Reason == ReasonRejectedCommercial
}

// Label — метка для метрик: ok, rejected или причина неудачи.
func (o Outcome) Label() string {
	switch {
	case o.IsRejection():
		return "rejected"
	case o.Status == TaskStatusDone:
		return "ok"
	case o.Reason == "":
		return "failed"
	default:
		return o.Reason
	}
}
