package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Prospector/internal/domain"
)

const scheduleColumns = `id, account_id, city, index_url, cron_expr, interval_sec, timezone, enabled,
	next_due_at, last_run_at, last_task_id, created_at, updated_at`

// ScheduleRepo — репозиторий расписаний discover.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Create создаёт новый schedule.
func (r *ScheduleRepo) Create(ctx context.Context, schedule *domain.Schedule) error {
	query := `
		INSERT INTO schedules (id, account_id, city, index_url, cron_expr, interval_sec, timezone,
		                       enabled, next_due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		schedule.ID,
		schedule.AccountID,
		schedule.City,
		nullString(schedule.IndexURL),
		nullString(schedule.CronExpr),
		nullInt(schedule.IntervalSec),
		schedule.Timezone,
		schedule.Enabled,
		schedule.NextDueAt,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByID возвращает schedule по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	s, err := scanSchedule(r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// ScheduleFilter — параметры фильтрации schedules.
type ScheduleFilter struct {
	AccountID *uuid.UUID
	City      string
	Enabled   *bool
	Limit     int
	Offset    int
}

// List возвращает список schedules с фильтрацией.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE ($1::uuid IS NULL OR account_id = $1)
		  AND ($2::text IS NULL OR city = $2)
		  AND ($3::boolean IS NULL OR enabled = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.AccountID),
		nullString(filter.City),
		filter.Enabled,
		limitOrDefault(filter.Limit, 50, 500),
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return collectSchedules(rows)
}

// ListDue возвращает schedules, готовые к выполнению.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled = true
		  AND next_due_at IS NOT NULL
		  AND next_due_at <= $1
		ORDER BY next_due_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	return collectSchedules(rows)
}

// Update обновляет schedule.
func (r *ScheduleRepo) Update(ctx context.Context, schedule *domain.Schedule) error {
	query := `
		UPDATE schedules
		SET city = $2, index_url = $3, cron_expr = $4, interval_sec = $5, timezone = $6,
		    enabled = $7, next_due_at = $8, last_run_at = $9, last_task_id = $10, updated_at = $11
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		schedule.ID,
		schedule.City,
		nullString(schedule.IndexURL),
		nullString(schedule.CronExpr),
		nullInt(schedule.IntervalSec),
		schedule.Timezone,
		schedule.Enabled,
		schedule.NextDueAt,
		schedule.LastRunAt,
		schedule.LastTaskID,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет schedule.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled включает/выключает schedule.
func (r *ScheduleRepo) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules SET enabled = $2, updated_at = NOW() WHERE id = $1
	`, id, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var s domain.Schedule
	var indexURL, cronExpr *string
	var intervalSec *int

	err := row.Scan(
		&s.ID,
		&s.AccountID,
		&s.City,
		&indexURL,
		&cronExpr,
		&intervalSec,
		&s.Timezone,
		&s.Enabled,
		&s.NextDueAt,
		&s.LastRunAt,
		&s.LastTaskID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	s.IndexURL = deref(indexURL)
	s.CronExpr = deref(cronExpr)
	if intervalSec != nil {
		s.IntervalSec = *intervalSec
	}
	return &s, nil
}

func collectSchedules(rows pgx.Rows) ([]domain.Schedule, error) {
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}
