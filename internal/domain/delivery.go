package domain

import (
	"time"

	"github.com/google/uuid"
)

// Delivery — пересылка одного объявления во внешний CRM webhook.
//
// Ровно одна строка на (AccountID, ListingHash): повторный enqueue — no-op.
// NextAttemptAt строго определяет, когда доставку можно снова claim'ить.
type Delivery struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	LeadID    uuid.UUID `json:"lead_id"`

	ListingURL string `json:"listing_url"`

	// ListingHash — стабильный хэш объявления (не сырой URL).
	ListingHash string `json:"listing_hash"`

	Status   DeliveryStatus `json:"status"`
	Attempts int            `json:"attempts"`

	// ClaimedBy — воркер, отправляющий доставку сейчас.
	ClaimedBy string `json:"claimed_by,omitempty"`

	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`

	// Payload — последний отправленный JSON.
	Payload map[string]any `json:"payload,omitempty"`

	ResponseStatus int    `json:"response_status,omitempty"`
	ResponseText   string `json:"response_text,omitempty"`
	LastError      string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeliveryResult — итог одной попытки отправки.
type DeliveryResult struct {
	StatusCode int
	Body       string
	Err        error
}

// OK — успешный ли ответ (2xx без транспортной ошибки).
func (r DeliveryResult) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}
