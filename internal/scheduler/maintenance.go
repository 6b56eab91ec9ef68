package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/queue"
	"github.com/shaiso/Prospector/internal/telemetry"
)

// DeliveryEnqueuer — создание доставок для новых лидов.
type DeliveryEnqueuer interface {
	EnqueueMissing(ctx context.Context, accountID *uuid.UUID) (int, error)
}

// TouchPromoter — queued → scheduled в пределах горизонта.
type TouchPromoter interface {
	Promote(ctx context.Context, horizon time.Duration) (int64, error)
}

// MaintenanceConfig — конфигурация Maintenance.
type MaintenanceConfig struct {
	Tasks      queue.Reclaimer
	Deliveries queue.Reclaimer
	Touches    queue.Reclaimer

	Enqueuer DeliveryEnqueuer
	Promoter TouchPromoter

	// Visibility — возраст claim'а, после которого он считается протухшим.
	Visibility time.Duration

	// PromoteHorizon — горизонт Promote (default: 5m).
	PromoteHorizon time.Duration

	Logger *slog.Logger
}

// MaintenanceReport — итог одного прохода.
type MaintenanceReport struct {
	TasksReclaimed      int64
	DeliveriesReclaimed int64
	TouchesReclaimed    int64
	DeliveriesEnqueued  int
	TouchesPromoted     int64
}

// Maintenance — периодическое обслуживание очередей: возврат протухших claim'ов,
// enqueue доставок, promote касаний. Все шаги идемпотентны.
type Maintenance struct {
	cfg    MaintenanceConfig
	logger *slog.Logger
}

// NewMaintenance создаёт Maintenance. Нулевые зависимости пропускаются.
func NewMaintenance(cfg MaintenanceConfig) *Maintenance {
	if cfg.Visibility <= 0 {
		cfg.Visibility = queue.DefaultVisibilityTimeout
	}
	if cfg.PromoteHorizon <= 0 {
		cfg.PromoteHorizon = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintenance{cfg: cfg, logger: telemetry.WithComponent(logger, "maintenance")}
}

// Run выполняет все шаги. Ошибка шага логируется, остальные шаги выполняются.
func (m *Maintenance) Run(ctx context.Context) MaintenanceReport {
	var rep MaintenanceReport

	rep.TasksReclaimed = m.reclaim(ctx, "tasks", m.cfg.Tasks)
	rep.DeliveriesReclaimed = m.reclaim(ctx, "deliveries", m.cfg.Deliveries)
	rep.TouchesReclaimed = m.reclaim(ctx, "touches", m.cfg.Touches)

	if m.cfg.Enqueuer != nil {
		n, err := m.cfg.Enqueuer.EnqueueMissing(ctx, nil)
		if err != nil {
			m.logger.Error("enqueue deliveries failed", "error", err)
		}
		rep.DeliveriesEnqueued = n
	}

	if m.cfg.Promoter != nil {
		n, err := m.cfg.Promoter.Promote(ctx, m.cfg.PromoteHorizon)
		if err != nil {
			m.logger.Error("promote touches failed", "error", err)
		}
		rep.TouchesPromoted = n
	}

	if rep != (MaintenanceReport{}) {
		m.logger.Info("maintenance completed",
			"tasks_reclaimed", rep.TasksReclaimed,
			"deliveries_reclaimed", rep.DeliveriesReclaimed,
			"touches_reclaimed", rep.TouchesReclaimed,
			"deliveries_enqueued", rep.DeliveriesEnqueued,
			"touches_promoted", rep.TouchesPromoted,
		)
	}
	return rep
}

func (m *Maintenance) reclaim(ctx context.Context, name string, r queue.Reclaimer) int64 {
	if r == nil {
		return 0
	}
	n, err := r.Reclaim(ctx, m.cfg.Visibility)
	if err != nil {
		m.logger.Error("reclaim failed", "queue", name, "error", err)
		return 0
	}
	return n
}
