package interrupt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/repo"
	"github.com/shaiso/Prospector/internal/telemetry"
)

// Итог обработки события.
const (
	ResultApplied    = "applied"
	ResultDeduped    = "deduped"
	ResultUnresolved = "unresolved"
)

// LeadStore — операции над лидами, нужные Service.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error)
	FindByContact(ctx context.Context, accountID uuid.UUID, email, phone string) (*domain.Lead, error)
	ApplyInterrupt(ctx context.Context, in domain.Interrupt) (domain.InterruptResult, error)
}

// TouchStatusWriter — запись статуса провайдера для delivery_status.
type TouchStatusWriter interface {
	ApplyProviderStatus(ctx context.Context, accountID, id uuid.UUID, status string) error
}

// Notifier — публикация lead.interrupted.
type Notifier interface {
	PublishLeadInterrupted(ctx context.Context, payload mq.LeadInterruptedPayload) error
}

// Result — итог Handle.
type Result struct {
	// Result — applied | deduped | unresolved.
	Result string `json:"result"`

	LeadID  *uuid.UUID       `json:"lead_id,omitempty"`
	State   domain.LeadState `json:"state,omitempty"`
	Deduped bool             `json:"deduped"`

	// Canceled — сколько касаний отменено.
	Canceled int64 `json:"canceled"`
}

// Service применяет входящие события к лидам.
//
// Ответ лида или запись на встречу атомарно меняют состояние лида и отменяют
// все его незавершённые касания. Повторная или запоздалая доставка того же
// события ничего не меняет и возвращает успех.
type Service struct {
	leads    LeadStore
	touches  TouchStatusWriter
	notifier Notifier
	logger   *slog.Logger
}

// NewService создаёт Service. notifier может быть nil.
func NewService(leads LeadStore, touches TouchStatusWriter, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		leads:    leads,
		touches:  touches,
		notifier: notifier,
		logger:   telemetry.WithComponent(logger, "interrupt"),
	}
}

// Handle обрабатывает одно входящее событие.
func (s *Service) Handle(ctx context.Context, ev domain.InboundEvent) (Result, error) {
	if ev.EventID == "" {
		return Result{}, fmt.Errorf("%w: event_id is required", ErrInvalidEvent)
	}

	logger := s.logger.With("event_id", ev.EventID, "kind", ev.Kind)

	if ev.Kind == domain.EventDeliveryStatus {
		return s.handleDeliveryStatus(ctx, logger, ev)
	}
	if !ev.Kind.IsInterrupt() {
		return Result{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, ev.Kind)
	}

	lead, err := s.resolveLead(ctx, ev)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			telemetry.Interrupts.WithLabelValues(string(ev.Kind), ResultUnresolved).Inc()
			logger.Warn("inbound event does not match any lead",
				"account_id", ev.AccountID,
				"email", ev.Email,
				"phone", ev.Phone,
			)
			return Result{Result: ResultUnresolved}, nil
		}
		return Result{}, err
	}

	in, ok := domain.InterruptFor(lead.ID, ev)
	if !ok {
		return Result{}, fmt.Errorf("%w: kind %q has no interrupt", ErrInvalidEvent, ev.Kind)
	}
	res, err := s.leads.ApplyInterrupt(ctx, in)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			telemetry.Interrupts.WithLabelValues(string(ev.Kind), ResultUnresolved).Inc()
			return Result{Result: ResultUnresolved}, nil
		}
		return Result{}, fmt.Errorf("apply interrupt: %w", err)
	}

	out := Result{
		Result:   ResultApplied,
		LeadID:   &lead.ID,
		State:    res.State,
		Deduped:  res.Deduped,
		Canceled: res.Canceled,
	}
	if res.Deduped {
		out.Result = ResultDeduped
	}
	telemetry.Interrupts.WithLabelValues(string(ev.Kind), out.Result).Inc()

	logger = telemetry.WithLeadID(logger, lead.ID.String())
	logger.Info("interrupt applied",
		"result", out.Result,
		"state", res.State,
		"state_changed", res.StateChanged,
		"canceled", res.Canceled,
	)

	if s.notifier != nil && !res.Deduped {
		err := s.notifier.PublishLeadInterrupted(ctx, mq.LeadInterruptedPayload{
			AccountID: lead.AccountID,
			LeadID:    lead.ID,
			EventID:   ev.EventID,
			Kind:      ev.Kind,
			State:     res.State,
			Canceled:  res.Canceled,
			Deduped:   res.Deduped,
		})
		if err != nil {
			logger.Warn("failed to publish lead.interrupted", "error", err)
		}
	}
	return out, nil
}

// resolveLead: по lead_id (в пределах аккаунта), иначе по email/телефону.
func (s *Service) resolveLead(ctx context.Context, ev domain.InboundEvent) (*domain.Lead, error) {
	if ev.LeadID != nil {
		lead, err := s.leads.GetByID(ctx, *ev.LeadID)
		if err != nil {
			return nil, err
		}
		if ev.AccountID != uuid.Nil && lead.AccountID != ev.AccountID {
			return nil, repo.ErrNotFound
		}
		return lead, nil
	}
	if ev.Email == "" && ev.Phone == "" {
		return nil, repo.ErrNotFound
	}
	return s.leads.FindByContact(ctx, ev.AccountID, ev.Email, ev.Phone)
}

func (s *Service) handleDeliveryStatus(ctx context.Context, logger *slog.Logger, ev domain.InboundEvent) (Result, error) {
	if ev.TouchID == nil || ev.Status == "" {
		return Result{}, fmt.Errorf("%w: delivery_status requires touch_id and status", ErrInvalidEvent)
	}

	if err := s.touches.ApplyProviderStatus(ctx, ev.AccountID, *ev.TouchID, ev.Status); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			telemetry.Interrupts.WithLabelValues(string(ev.Kind), ResultUnresolved).Inc()
			logger.Warn("delivery status for unknown touch", "touch_id", ev.TouchID)
			return Result{Result: ResultUnresolved}, nil
		}
		return Result{}, fmt.Errorf("apply provider status: %w", err)
	}

	telemetry.Interrupts.WithLabelValues(string(ev.Kind), ResultApplied).Inc()
	logger.Debug("provider status recorded", "touch_id", ev.TouchID, "status", ev.Status)
	return Result{Result: ResultApplied}, nil
}
