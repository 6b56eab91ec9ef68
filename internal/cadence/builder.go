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
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/repo"
	"github.com/shaiso/Prospector/internal/telemetry"
)

// campaignNamespace — пространство имён для детерминированных ID кампаний без ID.
var campaignNamespace = uuid.MustParse("6f1c2b0e-3a4d-4e59-9c7a-1d2e3f405162")

// CadenceStore — запись касаний кампании.
type CadenceStore interface {
	CreateCadence(ctx context.Context, leadID uuid.UUID, runs []domain.TouchRun) (int, error)
}

// Notifier — публикация touch.ready.
type Notifier interface {
	PublishTouchReady(ctx context.Context, payload mq.WakePayload) error
}

// Builder записывает лида в кампанию: строит упорядоченные касания.
type Builder struct {
	touches  CadenceStore
	notifier Notifier
	logger   *slog.Logger
}

// NewBuilder создаёт Builder. notifier может быть nil.
func NewBuilder(touches CadenceStore, notifier Notifier, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		touches:  touches,
		notifier: notifier,
		logger:   telemetry.WithComponent(logger, "cadence"),
	}
}

// Plan строит касания кампании без записи в БД.
//
// step = порядковый номер шага (с 1), scheduled_at = start + offset шага.
// Кампания без ID получает детерминированный ID по имени: повторная запись
// в ту же кампанию не дублирует касания.
func Plan(lead *domain.Lead, campaign domain.Campaign, start time.Time) ([]domain.TouchRun, error) {
	if !lead.State.Contactable() {
		return nil, fmt.Errorf("%w: %s", ErrLeadNotContactable, lead.State)
	}
	if len(campaign.Steps) == 0 {
		return nil, ErrEmptyCampaign
	}
	if len(campaign.Steps) >= domain.AdHocStepBase {
		return nil, fmt.Errorf("%w: too many steps (%d)", ErrInvalidStep, len(campaign.Steps))
	}

	campaignID := campaign.ID
	if campaignID == uuid.Nil {
		campaignID = uuid.NewSHA1(campaignNamespace, []byte(campaign.Name))
	}

	now := time.Now()
	runs := make([]domain.TouchRun, 0, len(campaign.Steps))
	for i, step := range campaign.Steps {
		if !step.Channel.Valid() {
			return nil, fmt.Errorf("%w: step %d: channel %q", ErrInvalidStep, i+1, step.Channel)
		}
		if step.Offset < 0 {
			return nil, fmt.Errorf("%w: step %d: negative offset", ErrInvalidStep, i+1)
		}
		if err := channels.ValidatePayload(step.Payload); err != nil {
			return nil, fmt.Errorf("%w: step %d: %v", ErrInvalidStep, i+1, err)
		}

		runs = append(runs, domain.TouchRun{
			ID:          uuid.New(),
			AccountID:   lead.AccountID,
			LeadID:      lead.ID,
			CampaignID:  &campaignID,
			Step:        i + 1,
			Channel:     step.Channel,
			Status:      domain.TouchStatusQueued,
			Payload:     step.Payload,
			ScheduledAt: start.Add(step.Offset),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return runs, nil
}

// Enroll записывает лида в кампанию. Возвращает число созданных касаний.
// Лид переводится в attempting в той же транзакции.
func (b *Builder) Enroll(ctx context.Context, lead *domain.Lead, campaign domain.Campaign, start time.Time) ([]domain.TouchRun, int, error) {
	runs, err := Plan(lead, campaign, start)
	if err != nil {
		return nil, 0, err
	}

	inserted, err := b.touches.CreateCadence(ctx, lead.ID, runs)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			return nil, 0, fmt.Errorf("%w: %v", ErrLeadNotContactable, err)
		}
		return nil, 0, fmt.Errorf("create cadence: %w", err)
	}

	logger := telemetry.WithLeadID(b.logger, lead.ID.String())
	logger.Info("lead enrolled",
		"campaign", campaign.Name,
		"steps", len(runs),
		"inserted", inserted,
	)

	if inserted > 0 && b.notifier != nil {
		err := b.notifier.PublishTouchReady(ctx, mq.WakePayload{AccountID: lead.AccountID, Count: inserted})
		if err != nil {
			logger.Warn("failed to publish touch.ready", "error", err)
		}
	}
	return runs, inserted, nil
}
