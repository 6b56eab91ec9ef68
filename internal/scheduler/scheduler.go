package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/telemetry"
)

// ScheduleStore — чтение due-расписаний и запись следующего запуска.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, schedule *domain.Schedule) error
}

// DiscoverCreator — идемпотентное создание discover-задачи.
type DiscoverCreator interface {
	CreateDiscover(ctx context.Context, task *domain.Task, scheduleKey string) (bool, error)
}

// Notifier — публикация task.ready.
type Notifier interface {
	PublishTaskReady(ctx context.Context, payload mq.WakePayload) error
}

// Scheduler создаёт discover-задачи по расписаниям городов.
type Scheduler struct {
	schedules ScheduleStore
	tasks     DiscoverCreator
	notifier  Notifier
	logger    *slog.Logger
	batchSize int
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Tasks     DiscoverCreator
	Notifier  Notifier // опционально
	Logger    *slog.Logger
	BatchSize int // расписаний за тик (default: 100)
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		schedules: cfg.Schedules,
		tasks:     cfg.Tasks,
		notifier:  cfg.Notifier,
		logger:    telemetry.WithComponent(logger, "scheduler"),
		batchSize: batchSize,
	}
}

// Tick обрабатывает due-расписания: discover-задача + сдвиг next_due_at.
// Ошибка одного расписания не блокирует остальные.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	due, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list due schedules: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	created := 0
	for i := range due {
		sched := &due[i]
		ok, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"city", sched.City,
				"error", err,
			)
			continue
		}
		if ok {
			created++
		}
	}

	s.logger.Info("scheduler tick completed", "due", len(due), "tasks_created", created)
	return created, nil
}

// processSchedule возвращает true, если задача создана (не дубликат).
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	task := domain.NewDiscoverTask(sched.AccountID, sched.City, sched.IndexURL)
	key := ScheduleKey(sched)

	created, err := s.tasks.CreateDiscover(ctx, task, key)
	if err != nil {
		return false, fmt.Errorf("create discover task: %w", err)
	}

	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// next_due_at не трогаем: расписание останется due, ошибка будет видна в логах.
		s.logger.Error("failed to calculate next due", "schedule_id", sched.ID, "error", err)
		return created, nil
	}

	if created {
		sched.RecordRun(task.ID, nextDue)
		telemetry.WithTaskID(s.logger, task.ID.String()).Info("discover task created from schedule",
			"schedule_id", sched.ID,
			"city", sched.City,
			"schedule_key", key,
		)
	} else {
		s.logger.Debug("discover task already exists", "schedule_id", sched.ID, "schedule_key", key)
		sched.NextDueAt = &nextDue
		sched.UpdatedAt = time.Now()
	}

	if err := s.schedules.Update(ctx, sched); err != nil {
		return created, fmt.Errorf("update schedule: %w", err)
	}

	if created && s.notifier != nil {
		err := s.notifier.PublishTaskReady(ctx, mq.WakePayload{AccountID: sched.AccountID, City: sched.City, Count: 1})
		if err != nil {
			s.logger.Warn("failed to publish task.ready", "task_id", task.ID, "error", err)
		}
	}
	return created, nil
}

// NewSchedule создаёт включённое расписание с вычисленным первым запуском.
func NewSchedule(accountID uuid.UUID, city, indexURL, cronExpr string, intervalSec int, timezone string) (*domain.Schedule, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	if cronExpr != "" {
		if err := ValidateCronExpr(cronExpr); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	sched := &domain.Schedule{
		ID:          uuid.New(),
		AccountID:   accountID,
		City:        city,
		IndexURL:    indexURL,
		CronExpr:    cronExpr,
		IntervalSec: intervalSec,
		Timezone:    timezone,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	next, err := CalculateNextDue(sched, now)
	if err != nil {
		return nil, err
	}
	sched.NextDueAt = &next
	return sched, nil
}
