package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/interrupt"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/queue"
	"github.com/shaiso/Prospector/internal/repo"
)

// TaskStore — операции над scrape-задачами.
type TaskStore interface {
	queue.TaskQueue
	CreateDiscover(ctx context.Context, task *domain.Task, scheduleKey string) (bool, error)
	RequeueFailed(ctx context.Context, filter repo.RequeueFilter) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	List(ctx context.Context, filter repo.TaskFilter) ([]domain.Task, error)
}

// DeliveryStore — чтение доставок.
type DeliveryStore interface {
	List(ctx context.Context, filter repo.DeliveryFilter) ([]domain.Delivery, error)
}

// DeliveryEnqueuer — создание доставок для новых лидов.
type DeliveryEnqueuer interface {
	EnqueueMissing(ctx context.Context, accountID *uuid.UUID) (int, error)
}

// LeadStore — чтение лидов и ручная смена состояния.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
	SetState(ctx context.Context, id uuid.UUID, to domain.LeadState) (int64, error)
}

// TouchStore — чтение касаний.
type TouchStore interface {
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.TouchRun, error)
}

// Enroller — запись лида в кампанию (cadence.Builder).
type Enroller interface {
	Enroll(ctx context.Context, lead *domain.Lead, campaign domain.Campaign, start time.Time) ([]domain.TouchRun, int, error)
}

// TouchExecutor — выполнение касаний вне расписания (cadence.Dispatcher).
type TouchExecutor interface {
	ExecuteOne(ctx context.Context, id uuid.UUID) (*domain.TouchRun, error)
	SendAdHoc(ctx context.Context, lead *domain.Lead, ch domain.Channel, payload map[string]any) (*domain.TouchRun, error)
}

// InboundHandler — обработка входящих событий (interrupt.Service).
type InboundHandler interface {
	Handle(ctx context.Context, ev domain.InboundEvent) (interrupt.Result, error)
}

// ScheduleStore — CRUD расписаний discover.
type ScheduleStore interface {
	Create(ctx context.Context, schedule *domain.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.Schedule, error)
	Update(ctx context.Context, schedule *domain.Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// Notifier — wake-up события для воркеров.
type Notifier interface {
	PublishTaskReady(ctx context.Context, payload mq.WakePayload) error
	PublishDeliveryReady(ctx context.Context, payload mq.WakePayload) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tasks      TaskStore
	deliveries DeliveryStore
	enqueuer   DeliveryEnqueuer
	leads      LeadStore
	touches    TouchStore
	enroller   Enroller
	executor   TouchExecutor
	inbound    InboundHandler
	schedules  ScheduleStore
	notifier   Notifier

	webhookSecret []byte
	visibility    time.Duration
	logger        *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tasks      TaskStore
	Deliveries DeliveryStore
	Enqueuer   DeliveryEnqueuer
	Leads      LeadStore
	Touches    TouchStore
	Enroller   Enroller
	Executor   TouchExecutor
	Inbound    InboundHandler
	Schedules  ScheduleStore
	Notifier   Notifier // опционально

	// WebhookSecret — ключ HMAC-SHA256 для /webhooks/inbound. Пусто — подпись не проверяется.
	WebhookSecret string

	// Visibility — возраст claim'а по умолчанию для /tasks/reclaim.
	Visibility time.Duration

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	visibility := cfg.Visibility
	if visibility <= 0 {
		visibility = queue.DefaultVisibilityTimeout
	}
	return &Handler{
		tasks:         cfg.Tasks,
		deliveries:    cfg.Deliveries,
		enqueuer:      cfg.Enqueuer,
		leads:         cfg.Leads,
		touches:       cfg.Touches,
		enroller:      cfg.Enroller,
		executor:      cfg.Executor,
		inbound:       cfg.Inbound,
		schedules:     cfg.Schedules,
		notifier:      cfg.Notifier,
		webhookSecret: []byte(cfg.WebhookSecret),
		visibility:    visibility,
		logger:        logger,
	}
}

func (h *Handler) publishTaskReady(ctx context.Context, p mq.WakePayload) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.PublishTaskReady(ctx, p); err != nil {
		h.logger.Warn("failed to publish task.ready", "error", err)
	}
}

func (h *Handler) publishDeliveryReady(ctx context.Context, p mq.WakePayload) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.PublishDeliveryReady(ctx, p); err != nil {
		h.logger.Warn("failed to publish delivery.ready", "error", err)
	}
}
