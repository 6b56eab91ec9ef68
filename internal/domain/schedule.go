package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание автоматического discover для города.
//
// Schedule позволяет запускать discover:
// - По cron-выражению: "0 */6 * * *" (каждые 6 часов)
// - По интервалу: каждые N секунд
//
// Scheduler проверяет next_due_at и создаёт discover-task, когда время подошло.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// AccountID — аккаунт, для которого создаются задачи.
	AccountID uuid.UUID `json:"account_id"`

	// City — город для discover.
	City string `json:"city"`

	// IndexURL — URL индекса; пусто — берётся шаблон из конфигурации.
	IndexURL string `json:"index_url,omitempty"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс для вычисления времени. По умолчанию: "UTC".
	Timezone string `json:"timezone"`

	// Enabled — флаг активности расписания.
	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastTaskID — ID последней созданной discover-задачи.
	LastTaskID *uuid.UUID `json:"last_task_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(taskID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastTaskID = &taskID
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}
