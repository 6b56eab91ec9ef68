package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/queue"
	"github.com/shaiso/Prospector/internal/repo"
	"github.com/shaiso/Prospector/internal/telemetry"
)

// Store — операции над доставками, нужные воркеру.
type Store interface {
	queue.Claimer[domain.Delivery]
	MarkSent(ctx context.Context, id uuid.UUID, workerID string, payload map[string]any, res domain.DeliveryResult) error
	MarkFailed(ctx context.Context, id uuid.UUID, workerID string, payload map[string]any, res domain.DeliveryResult, nextAttempt *time.Time) error
}

// LeadGetter — чтение лида для построения payload.
type LeadGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
}

// WorkerConfig — конфигурация Worker.
type WorkerConfig struct {
	WorkerID string

	Deliveries Store
	Leads      LeadGetter
	Poster     *Poster

	// Enqueuer — запускается перед каждым claim (опционально).
	Enqueuer *Enqueuer

	Filter  queue.Filter
	Backoff queue.Backoff

	// MaxAttempts — после стольких неудач доставка становится dead. 0 — без предела.
	MaxAttempts int

	PollInterval     time.Duration
	BatchSize        int
	MaxStoreFailures int

	// Wake — сигналы delivery.ready (опционально).
	Wake <-chan struct{}

	Logger *slog.Logger
}

// Worker — воркер доставки: claim → POST → sent | failed (с backoff) | dead.
type Worker struct {
	id          string
	deliveries  Store
	leads       LeadGetter
	poster      *Poster
	enqueuer    *Enqueuer
	filter      queue.Filter
	backoff     queue.Backoff
	maxAttempts int

	pollInterval     time.Duration
	batchSize        int
	maxStoreFailures int
	wake             <-chan struct{}

	now    func() time.Time
	logger *slog.Logger
}

// NewWorker создаёт Worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		id:               cfg.WorkerID,
		deliveries:       cfg.Deliveries,
		leads:            cfg.Leads,
		poster:           cfg.Poster,
		enqueuer:         cfg.Enqueuer,
		filter:           cfg.Filter,
		backoff:          cfg.Backoff,
		maxAttempts:      cfg.MaxAttempts,
		pollInterval:     cfg.PollInterval,
		batchSize:        cfg.BatchSize,
		maxStoreFailures: cfg.MaxStoreFailures,
		wake:             cfg.Wake,
		now:              time.Now,
		logger:           telemetry.WithComponent(telemetry.WithWorkerID(logger, cfg.WorkerID), "delivery"),
	}
}

// Run крутит цикл до отмены ctx или ErrStoreUnavailable.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("delivery worker started",
		"max_attempts", w.maxAttempts,
		"backoff_base", w.backoff.Base,
		"backoff_cap", w.backoff.Cap,
	)

	poller := queue.NewPoller(queue.PollerConfig[domain.Delivery]{
		Name:             "deliveries",
		Claim:            w.claim,
		Handle:           func(ctx context.Context, d domain.Delivery) error { return w.Process(ctx, &d) },
		Interval:         w.pollInterval,
		BatchSize:        w.batchSize,
		MaxStoreFailures: w.maxStoreFailures,
		Wake:             w.wake,
		Logger:           w.logger,
	})

	if err := poller.Run(ctx); err != nil {
		return err
	}
	w.logger.Info("delivery worker stopped")
	return nil
}

func (w *Worker) claim(ctx context.Context, limit int) ([]domain.Delivery, error) {
	if w.enqueuer != nil {
		if _, err := w.enqueuer.EnqueueMissing(ctx, w.filter.AccountID); err != nil {
			return nil, err
		}
	}
	return w.deliveries.Claim(ctx, w.id, w.filter, limit)
}

// Process выполняет одну захваченную доставку.
// Возвращает ошибку только при сбое хранилища.
func (w *Worker) Process(ctx context.Context, d *domain.Delivery) error {
	logger := w.logger.With(
		"delivery_id", d.ID,
		"lead_id", d.LeadID,
		"attempt", d.Attempts,
	)

	lead, err := w.leads.GetByID(ctx, d.LeadID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Error("lead for delivery not found, dead-lettering")
			res := domain.DeliveryResult{Err: fmt.Errorf("lead %s not found", d.LeadID)}
			return w.finishFailed(ctx, logger, d, nil, res, true)
		}
		return fmt.Errorf("get lead %s: %w", d.LeadID, err)
	}

	payload := BuildPayload(lead)

	res, err := w.poster.Post(ctx, d, payload)
	if err != nil {
		// ctx отменён до отправки: claim протухнет и доставку подберут.
		return nil
	}

	if res.OK() {
		if err := w.deliveries.MarkSent(ctx, d.ID, w.id, payload, res); err != nil {
			return w.storeErr(logger, err)
		}
		telemetry.Deliveries.WithLabelValues("sent").Inc()
		logger.Info("delivery sent", "status", res.StatusCode)
		return nil
	}

	dead := w.maxAttempts > 0 && d.Attempts >= w.maxAttempts
	return w.finishFailed(ctx, logger, d, payload, res, dead)
}

func (w *Worker) finishFailed(ctx context.Context, logger *slog.Logger, d *domain.Delivery, payload map[string]any, res domain.DeliveryResult, dead bool) error {
	var next *time.Time
	if !dead {
		t := w.backoff.Next(w.now(), d.Attempts)
		next = &t
	}

	if err := w.deliveries.MarkFailed(ctx, d.ID, w.id, payload, res, next); err != nil {
		return w.storeErr(logger, err)
	}

	if dead {
		telemetry.Deliveries.WithLabelValues("dead").Inc()
		logger.Error("delivery dead-lettered",
			"status", res.StatusCode,
			"error", res.Err,
		)
		return nil
	}

	telemetry.Deliveries.WithLabelValues("failed").Inc()
	logger.Warn("delivery failed, will retry",
		"status", res.StatusCode,
		"error", res.Err,
		"next_attempt_at", next,
	)
	return nil
}

// storeErr: потеря claim'а — не ошибка хранилища.
func (w *Worker) storeErr(logger *slog.Logger, err error) error {
	if errors.Is(err, queue.ErrNotOwner) {
		logger.Warn("claim lost before finish", "error", err)
		return nil
	}
	return err
}
