package cadence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/channels"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/queue"
	"github.com/shaiso/Prospector/internal/repo"
	"github.com/shaiso/Prospector/internal/telemetry"
)

const defaultPromoteHorizon = 5 * time.Minute

// Store — операции над касаниями, нужные Dispatcher'у.
type Store interface {
	Promote(ctx context.Context, horizon time.Duration) (int64, error)
	ClaimDue(ctx context.Context, workerID string, limit int) ([]domain.TouchRun, error)
	ClaimByID(ctx context.Context, id uuid.UUID, workerID string) (*domain.TouchRun, error)
	MarkSent(ctx context.Context, id uuid.UUID, providerID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TouchRun, error)
	CreateAdHoc(ctx context.Context, run *domain.TouchRun) error
	NextAdHocStep(ctx context.Context, leadID uuid.UUID) (int, error)
}

// LeadGetter — чтение лида перед отправкой.
type LeadGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
}

// DispatcherConfig — конфигурация Dispatcher.
type DispatcherConfig struct {
	WorkerID string

	Touches Store
	Leads   LeadGetter
	Senders *channels.Registry

	// PromoteHorizon — queued → scheduled в пределах горизонта (default: 5m).
	PromoteHorizon time.Duration

	PollInterval     time.Duration
	BatchSize        int
	MaxStoreFailures int

	// Wake — сигналы touch.ready (опционально).
	Wake <-chan struct{}

	Logger *slog.Logger
}

// Dispatcher выполняет касания: promote → claim due → Send → sent | failed.
//
// Касание, отменённое interrupt'ом, не может быть захвачено. Если отмена
// пришла во время Send, итоговый статус остаётся canceled: MarkSent/MarkFailed
// меняют только executing-касания.
type Dispatcher struct {
	id      string
	touches Store
	leads   LeadGetter
	senders *channels.Registry
	horizon time.Duration

	pollInterval     time.Duration
	batchSize        int
	maxStoreFailures int
	wake             <-chan struct{}

	logger *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	horizon := cfg.PromoteHorizon
	if horizon <= 0 {
		horizon = defaultPromoteHorizon
	}
	return &Dispatcher{
		id:               cfg.WorkerID,
		touches:          cfg.Touches,
		leads:            cfg.Leads,
		senders:          cfg.Senders,
		horizon:          horizon,
		pollInterval:     cfg.PollInterval,
		batchSize:        cfg.BatchSize,
		maxStoreFailures: cfg.MaxStoreFailures,
		wake:             cfg.Wake,
		logger:           telemetry.WithComponent(telemetry.WithWorkerID(logger, cfg.WorkerID), "dispatcher"),
	}
}

// Run крутит цикл до отмены ctx или ErrStoreUnavailable.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("touch dispatcher started",
		"channels", d.senders.Channels(),
		"promote_horizon", d.horizon,
	)

	poller := queue.NewPoller(queue.PollerConfig[domain.TouchRun]{
		Name:             "touches",
		Claim:            d.claim,
		Handle:           func(ctx context.Context, t domain.TouchRun) error { return d.Process(ctx, &t) },
		Interval:         d.pollInterval,
		BatchSize:        d.batchSize,
		MaxStoreFailures: d.maxStoreFailures,
		Wake:             d.wake,
		Logger:           d.logger,
	})

	if err := poller.Run(ctx); err != nil {
		return err
	}
	d.logger.Info("touch dispatcher stopped")
	return nil
}

func (d *Dispatcher) claim(ctx context.Context, limit int) ([]domain.TouchRun, error) {
	promoted, err := d.touches.Promote(ctx, d.horizon)
	if err != nil {
		return nil, err
	}
	if promoted > 0 {
		d.logger.Debug("touches promoted", "count", promoted)
	}
	return d.touches.ClaimDue(ctx, d.id, limit)
}

// Process отправляет одно захваченное (executing) касание.
// Возвращает ошибку только при сбое хранилища.
func (d *Dispatcher) Process(ctx context.Context, touch *domain.TouchRun) error {
	logger := telemetry.WithLeadID(d.logger, touch.LeadID.String()).With(
		"touch_id", touch.ID,
		"channel", touch.Channel,
		"step", touch.Step,
	)

	lead, err := d.leads.GetByID(ctx, touch.LeadID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return d.fail(ctx, logger, touch, "lead not found")
		}
		return fmt.Errorf("get lead %s: %w", touch.LeadID, err)
	}
	if !lead.State.Contactable() {
		// interrupt уже отменил касание либо отменит его; MarkFailed ничего не изменит.
		logger.Info("lead not contactable, skipping touch", "state", lead.State)
		return d.finishFailed(ctx, logger, touch, "lead not contactable: "+string(lead.State), "refused")
	}

	sender, err := d.senders.Get(touch.Channel)
	if err != nil {
		return d.fail(ctx, logger, touch, err.Error())
	}

	payload, err := channels.RenderPayload(touch.Payload, channels.NewTemplateData(lead, touch))
	if err != nil {
		return d.fail(ctx, logger, touch, err.Error())
	}
	msg := *touch
	msg.Payload = payload

	providerID, err := sender.Send(ctx, &msg, lead)
	if err != nil {
		if ctx.Err() != nil {
			// Остановка: касание останется executing, Reclaim переведёт его в failed.
			return nil
		}
		return d.fail(ctx, logger, touch, err.Error())
	}

	if err := d.touches.MarkSent(ctx, touch.ID, providerID); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			logger.Warn("touch canceled while sending", "provider_id", providerID)
			telemetry.Touches.WithLabelValues(string(touch.Channel), "refused").Inc()
			return nil
		}
		return err
	}

	telemetry.Touches.WithLabelValues(string(touch.Channel), "sent").Inc()
	logger.Info("touch sent", "provider_id", providerID)
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, logger *slog.Logger, touch *domain.TouchRun, msg string) error {
	return d.finishFailed(ctx, logger, touch, msg, "failed")
}

func (d *Dispatcher) finishFailed(ctx context.Context, logger *slog.Logger, touch *domain.TouchRun, msg, outcome string) error {
	if err := d.touches.MarkFailed(ctx, touch.ID, msg); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			logger.Info("touch already canceled")
			return nil
		}
		return err
	}
	telemetry.Touches.WithLabelValues(string(touch.Channel), outcome).Inc()
	logger.Warn("touch failed", "error", msg)
	return nil
}

// ExecuteOne выполняет одно касание вне расписания.
// Отменённое или уже выполненное касание — ErrTouchCanceled.
func (d *Dispatcher) ExecuteOne(ctx context.Context, id uuid.UUID) (*domain.TouchRun, error) {
	touch, err := d.touches.ClaimByID(ctx, id, d.id)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			if _, getErr := d.touches.GetByID(ctx, id); errors.Is(getErr, repo.ErrNotFound) {
				return nil, repo.ErrNotFound
			}
			telemetry.Touches.WithLabelValues("", "refused").Inc()
			return nil, fmt.Errorf("%w: %s", ErrTouchCanceled, id)
		}
		return nil, fmt.Errorf("claim touch %s: %w", id, err)
	}

	if err := d.Process(ctx, touch); err != nil {
		return nil, err
	}
	return d.touches.GetByID(ctx, id)
}

// SendAdHoc создаёт разовое касание (step из зарезервированного диапазона)
// и сразу выполняет его.
func (d *Dispatcher) SendAdHoc(ctx context.Context, lead *domain.Lead, ch domain.Channel, payload map[string]any) (*domain.TouchRun, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("%w: channel %q", ErrInvalidStep, ch)
	}
	if !lead.State.Contactable() {
		return nil, fmt.Errorf("%w: %s", ErrLeadNotContactable, lead.State)
	}
	if err := channels.ValidatePayload(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStep, err)
	}

	step, err := d.touches.NextAdHocStep(ctx, lead.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	run := &domain.TouchRun{
		ID:          uuid.New(),
		AccountID:   lead.AccountID,
		LeadID:      lead.ID,
		Step:        step,
		Channel:     ch,
		Status:      domain.TouchStatusQueued,
		Payload:     payload,
		ScheduledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.touches.CreateAdHoc(ctx, run); err != nil {
		return nil, fmt.Errorf("create ad-hoc touch: %w", err)
	}

	return d.ExecuteOne(ctx, run.ID)
}
