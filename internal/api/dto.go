package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeJSON читает тело запроса и проверяет его по тегам validate.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return formatValidation(err)
	}
	return nil
}

func formatValidation(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(parts, ", "))
}

// Query helpers

func queryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &id, nil
}

func queryInt(r *http.Request, key string, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && n >= 0 {
		return n
	}
	return def
}

func parseOptionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}

// Task DTOs

// ClaimTasksRequest — claim RPC.
type ClaimTasksRequest struct {
	WorkerID  string            `json:"worker_id" validate:"required"`
	AccountID string            `json:"account_id,omitempty" validate:"omitempty,uuid"`
	City      string            `json:"city,omitempty"`
	Types     []domain.TaskType `json:"types,omitempty" validate:"dive,oneof=discover detail"`
	Limit     int               `json:"limit" validate:"min=0,max=100"`
}

// FinishTaskRequest — finish RPC.
type FinishTaskRequest struct {
	WorkerID string            `json:"worker_id" validate:"required"`
	Status   domain.TaskStatus `json:"status" validate:"required,oneof=done failed"`
	Reason   string            `json:"reason,omitempty"`
}

// CreateDiscoverRequest — ручной запуск discover для города.
type CreateDiscoverRequest struct {
	AccountID   string `json:"account_id" validate:"required,uuid"`
	City        string `json:"city" validate:"required"`
	IndexURL    string `json:"index_url,omitempty" validate:"omitempty,url"`
	ScheduleKey string `json:"schedule_key,omitempty"`
}

// ReclaimRequest — возврат протухших claim'ов.
type ReclaimRequest struct {
	OlderThanSec int `json:"older_than_sec,omitempty" validate:"min=0"`
}

// RequeueRequest — возврат failed-задач в очередь.
type RequeueRequest struct {
	IDs          []uuid.UUID `json:"ids,omitempty"`
	AccountID    string      `json:"account_id,omitempty" validate:"omitempty,uuid"`
	City         string      `json:"city,omitempty"`
	ReasonPrefix string      `json:"reason_prefix,omitempty"`
}

// CountResponse — ответ команд, возвращающих число затронутых строк.
type CountResponse struct {
	Count int64 `json:"count"`
}

// CreateDiscoverResponse — ответ на создание discover.
type CreateDiscoverResponse struct {
	Created bool         `json:"created"`
	Task    TaskResponse `json:"task"`
}

// TaskResponse — ответ с task.
type TaskResponse struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	City       string     `json:"city"`
	Type       string     `json:"task_type"`
	Status     string     `json:"status"`
	ExternalID string     `json:"external_id,omitempty"`
	ListingURL string     `json:"listing_url,omitempty"`
	Attempts   int        `json:"attempts"`
	ClaimedBy  string     `json:"claimed_by,omitempty"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TaskFromDomain конвертирует domain.Task в TaskResponse.
func TaskFromDomain(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		AccountID:  t.AccountID,
		City:       t.City,
		Type:       string(t.Type),
		Status:     string(t.Status),
		ExternalID: t.ExternalID,
		ListingURL: t.ListingURL,
		Attempts:   t.Attempts,
		ClaimedBy:  t.ClaimedBy,
		ClaimedAt:  t.ClaimedAt,
		LastError:  t.LastError,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func tasksFromDomain(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, len(tasks))
	for i := range tasks {
		out[i] = TaskFromDomain(tasks[i])
	}
	return out
}

// Delivery DTOs

// EnqueueDeliveriesRequest — создание доставок для лидов без доставки.
type EnqueueDeliveriesRequest struct {
	AccountID string `json:"account_id,omitempty" validate:"omitempty,uuid"`
}

// Lead DTOs

// CampaignStepRequest — шаг кампании.
type CampaignStepRequest struct {
	OffsetSec int            `json:"offset_sec" validate:"min=0"`
	Channel   domain.Channel `json:"channel" validate:"required,oneof=email sms whatsapp voice"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// EnrollRequest — запись лида в кампанию.
type EnrollRequest struct {
	CampaignID string                `json:"campaign_id,omitempty" validate:"omitempty,uuid"`
	Name       string                `json:"name" validate:"required"`
	Steps      []CampaignStepRequest `json:"steps" validate:"required,min=1,dive"`

	// StartAt — начало cadence (по умолчанию сейчас).
	StartAt *time.Time `json:"start_at,omitempty"`
}

// Campaign конвертирует запрос в domain.Campaign.
func (r EnrollRequest) Campaign(accountID uuid.UUID) domain.Campaign {
	c := domain.Campaign{AccountID: accountID, Name: r.Name}
	if id := parseOptionalUUID(r.CampaignID); id != nil {
		c.ID = *id
	}
	for _, s := range r.Steps {
		c.Steps = append(c.Steps, domain.CadenceStep{
			Offset:  time.Duration(s.OffsetSec) * time.Second,
			Channel: s.Channel,
			Payload: s.Payload,
		})
	}
	return c
}

// EnrollResponse — итог записи в кампанию.
type EnrollResponse struct {
	Inserted int               `json:"inserted"`
	Touches  []domain.TouchRun `json:"touches"`
}

// SetLeadStateRequest — ручная смена состояния лида.
type SetLeadStateRequest struct {
	State domain.LeadState `json:"state" validate:"required,oneof=new enriched attempting engaged qualified booked dead"`
}

// SetLeadStateResponse — итог смены состояния.
type SetLeadStateResponse struct {
	Lead     *domain.Lead `json:"lead"`
	Canceled int64        `json:"canceled"`
}

// AdHocTouchRequest — разовое касание.
type AdHocTouchRequest struct {
	Channel domain.Channel `json:"channel" validate:"required,oneof=email sms whatsapp voice"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Webhook DTOs

// InboundEventRequest — тело /webhooks/inbound.
type InboundEventRequest struct {
	EventID   string           `json:"event_id" validate:"required,max=200"`
	AccountID string           `json:"account_id" validate:"required,uuid"`
	Kind      domain.EventKind `json:"kind" validate:"required,oneof=inbound_message appointment_booked delivery_status"`
	LeadID    string           `json:"lead_id,omitempty" validate:"omitempty,uuid"`
	Email     string           `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string           `json:"phone,omitempty"`
	Channel   domain.Channel   `json:"channel,omitempty" validate:"omitempty,oneof=email sms whatsapp voice"`
	TouchID   string           `json:"touch_id,omitempty" validate:"omitempty,uuid"`
	Status    string           `json:"status,omitempty" validate:"required_if=Kind delivery_status"`
}

// Event конвертирует запрос в domain.InboundEvent.
func (r InboundEventRequest) Event(receivedAt time.Time) domain.InboundEvent {
	return domain.InboundEvent{
		EventID:    r.EventID,
		AccountID:  uuid.MustParse(r.AccountID),
		Kind:       r.Kind,
		LeadID:     parseOptionalUUID(r.LeadID),
		Email:      r.Email,
		Phone:      r.Phone,
		Channel:    r.Channel,
		TouchID:    parseOptionalUUID(r.TouchID),
		Status:     r.Status,
		ReceivedAt: receivedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание расписания discover.
type CreateScheduleRequest struct {
	AccountID   string `json:"account_id" validate:"required,uuid"`
	City        string `json:"city" validate:"required"`
	IndexURL    string `json:"index_url,omitempty" validate:"omitempty,url"`
	CronExpr    string `json:"cron_expr,omitempty" validate:"required_without=IntervalSec"`
	IntervalSec int    `json:"interval_sec,omitempty" validate:"min=0"`
	Timezone    string `json:"timezone,omitempty" validate:"omitempty,timezone"`
	Enabled     *bool  `json:"enabled,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление расписания.
type UpdateScheduleRequest struct {
	City        *string `json:"city,omitempty"`
	IndexURL    *string `json:"index_url,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty" validate:"omitempty,min=0"`
	Timezone    *string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	City        string     `json:"city"`
	IndexURL    string     `json:"index_url,omitempty"`
	CronExpr    string     `json:"cron_expr,omitempty"`
	IntervalSec int        `json:"interval_sec,omitempty"`
	Timezone    string     `json:"timezone"`
	Enabled     bool       `json:"enabled"`
	NextDueAt   *time.Time `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	LastTaskID  *uuid.UUID `json:"last_task_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:          s.ID,
		AccountID:   s.AccountID,
		City:        s.City,
		IndexURL:    s.IndexURL,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastTaskID:  s.LastTaskID,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
