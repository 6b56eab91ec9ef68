package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
)

const defaultEnqueueBatch = 100

// LeadLister — выборка лидов с телефоном, у которых ещё нет доставки.
type LeadLister interface {
	ListWithoutDelivery(ctx context.Context, accountID *uuid.UUID, limit int) ([]domain.Lead, error)
}

// DeliveryEnqueuer — идемпотентная вставка доставки.
type DeliveryEnqueuer interface {
	Enqueue(ctx context.Context, d *domain.Delivery) (bool, error)
}

// Enqueuer создаёт доставки для новых лидов.
//
// Шаг идемпотентен: ключ (account_id, listing_hash) уникален,
// повторный запуск не создаёт дубликатов.
type Enqueuer struct {
	leads      LeadLister
	deliveries DeliveryEnqueuer
	batch      int
	logger     *slog.Logger
}

// NewEnqueuer создаёт Enqueuer.
func NewEnqueuer(leads LeadLister, deliveries DeliveryEnqueuer, logger *slog.Logger) *Enqueuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enqueuer{
		leads:      leads,
		deliveries: deliveries,
		batch:      defaultEnqueueBatch,
		logger:     logger,
	}
}

// EnqueueMissing создаёт доставки для лидов без доставки. accountID == nil — все аккаунты.
// Возвращает количество созданных строк.
func (e *Enqueuer) EnqueueMissing(ctx context.Context, accountID *uuid.UUID) (int, error) {
	leads, err := e.leads.ListWithoutDelivery(ctx, accountID, e.batch)
	if err != nil {
		return 0, fmt.Errorf("list leads without delivery: %w", err)
	}

	created := 0
	for i := range leads {
		lead := &leads[i]
		now := time.Now()
		d := &domain.Delivery{
			ID:          uuid.New(),
			AccountID:   lead.AccountID,
			LeadID:      lead.ID,
			ListingURL:  lead.ListingURL,
			ListingHash: LeadHash(lead),
			Status:      domain.DeliveryStatusQueued,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		ok, err := e.deliveries.Enqueue(ctx, d)
		if err != nil {
			return created, fmt.Errorf("enqueue delivery for lead %s: %w", lead.ID, err)
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		e.logger.Info("deliveries enqueued", "count", created)
	}
	return created, nil
}
