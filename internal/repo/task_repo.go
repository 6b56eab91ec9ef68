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
	"github.com/shaiso/Prospector/internal/queue"
)

const taskColumns = `id, account_id, city, task_type, status, external_id, listing_url,
	attempts, claimed_by, claimed_at, last_error, created_at, updated_at`

// TaskRepo — репозиторий scrape-задач. Реализует queue.TaskQueue.
type TaskRepo struct {
	pool       *pgxpool.Pool
	visibility time.Duration
}

// NewTaskRepo создаёт новый TaskRepo.
// visibility — через сколько claim без finish снова доступен (<= 0 — значение по умолчанию).
func NewTaskRepo(pool *pgxpool.Pool, visibility time.Duration) *TaskRepo {
	if visibility <= 0 {
		visibility = queue.DefaultVisibilityTimeout
	}
	return &TaskRepo{pool: pool, visibility: visibility}
}

var _ queue.TaskQueue = (*TaskRepo)(nil)

// CreateDiscover создаёт discover-задачу.
//
// scheduleKey делает создание идемпотентным (schedule_id + due time):
// повторный вызов с тем же ключом возвращает false.
func (r *TaskRepo) CreateDiscover(ctx context.Context, task *domain.Task, scheduleKey string) (bool, error) {
	query := `
		INSERT INTO tasks (id, account_id, city, task_type, status, listing_url,
		                   schedule_key, created_at, updated_at)
		VALUES ($1, $2, $3, 'discover', 'queued', $4, $5, $6, $6)
		ON CONFLICT (schedule_key) WHERE schedule_key IS NOT NULL DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.AccountID,
		task.City,
		nullString(task.ListingURL),
		nullString(scheduleKey),
		task.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert discover task: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// InsertDetailTasks вставляет detail-задачи, пропуская уже известные external_id.
// Возвращает количество реально вставленных.
func (r *TaskRepo) InsertDetailTasks(ctx context.Context, tasks []domain.Task) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO tasks (id, account_id, city, task_type, status, external_id,
		                   listing_url, created_at, updated_at)
		VALUES ($1, $2, $3, 'detail', 'queued', $4, $5, $6, $6)
		ON CONFLICT (account_id, external_id) WHERE task_type = 'detail' DO NOTHING
	`
	batch := &pgx.Batch{}
	for i := range tasks {
		t := &tasks[i]
		if t.ExternalID == "" {
			return 0, fmt.Errorf("detail task %s: %w: empty external_id", t.ID, ErrInvalidState)
		}
		batch.Queue(query, t.ID, t.AccountID, t.City, t.ExternalID, t.ListingURL, t.CreatedAt)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range tasks {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert detail task: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// Claim захватывает до limit задач.
//
// Eligible: queued либо claimed с протухшим claimed_at.
// failed не захватываются повторно — только через RequeueFailed.
func (r *TaskRepo) Claim(ctx context.Context, workerID string, filter queue.Filter, limit int) ([]domain.Task, error) {
	query := `
		WITH cte AS (
			SELECT id
			FROM tasks
			WHERE (status = 'queued'
			       OR (status = 'claimed' AND claimed_at < now() - make_interval(secs => $2)))
			  AND ($3::uuid IS NULL OR account_id = $3)
			  AND ($4::text IS NULL OR city = $4)
			  AND ($5::text[] IS NULL OR task_type = ANY($5))
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $6
		)
		UPDATE tasks t
		SET status = 'claimed', claimed_by = $1, claimed_at = now(),
		    attempts = t.attempts + 1, updated_at = now()
		FROM cte
		WHERE t.id = cte.id
		RETURNING t.id, t.account_id, t.city, t.task_type, t.status, t.external_id, t.listing_url,
		          t.attempts, t.claimed_by, t.claimed_at, t.last_error, t.created_at, t.updated_at
	`
	rows, err := r.pool.Query(ctx, query,
		workerID,
		seconds(r.visibility),
		nullUUID(filter.AccountID),
		nullString(filter.City),
		taskTypes(filter.Types),
		limitOrDefault(limit, 1, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("claim tasks: %w", err)
	}
	return collectTasks(rows)
}

// Finish переводит задачу в done/failed.
// Только текущий владелец claim'а может завершить задачу.
func (r *TaskRepo) Finish(ctx context.Context, id uuid.UUID, workerID string, outcome domain.Outcome) error {
	if !outcome.Status.IsTerminal() {
		return fmt.Errorf("%w: finish with status %s", ErrInvalidState, outcome.Status)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = $3, last_error = $4, updated_at = now()
		WHERE id = $1 AND status = 'claimed' AND claimed_by = $2
	`, id, workerID, outcome.Status, nullString(outcome.Reason))
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return queue.ErrNotOwner
}

// Reclaim возвращает в очередь задачи, захваченные дольше olderThan.
func (r *TaskRepo) Reclaim(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'queued', claimed_by = NULL, claimed_at = NULL, updated_at = now()
		WHERE status = 'claimed' AND claimed_at < now() - make_interval(secs => $1)
	`, seconds(olderThan))
	if err != nil {
		return 0, fmt.Errorf("reclaim tasks: %w", err)
	}
	return result.RowsAffected(), nil
}

// RequeueFilter — какие failed-задачи вернуть в очередь.
type RequeueFilter struct {
	IDs       []uuid.UUID
	AccountID *uuid.UUID
	City      string

	// ReasonPrefix — например, "blocked_" или "goto_timeout".
	ReasonPrefix string
}

// RequeueFailed возвращает failed-задачи в queued.
func (r *TaskRepo) RequeueFailed(ctx context.Context, filter RequeueFilter) (int64, error) {
	var ids []uuid.UUID
	if len(filter.IDs) > 0 {
		ids = filter.IDs
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'queued', claimed_by = NULL, claimed_at = NULL, updated_at = now()
		WHERE status = 'failed'
		  AND ($1::uuid[] IS NULL OR id = ANY($1))
		  AND ($2::uuid IS NULL OR account_id = $2)
		  AND ($3::text IS NULL OR city = $3)
		  AND ($4::text IS NULL OR last_error LIKE $4 || '%')
	`, ids, nullUUID(filter.AccountID), nullString(filter.City), nullString(filter.ReasonPrefix))
	if err != nil {
		return 0, fmt.Errorf("requeue tasks: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetByID возвращает задачу по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

// TaskFilter — параметры фильтрации списка задач.
type TaskFilter struct {
	AccountID *uuid.UUID
	City      string
	Type      domain.TaskType
	Status    domain.TaskStatus
	Limit     int
	Offset    int
}

// List возвращает задачи с фильтрацией, новые первыми.
func (r *TaskRepo) List(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE ($1::uuid IS NULL OR account_id = $1)
		  AND ($2::text IS NULL OR city = $2)
		  AND ($3::text IS NULL OR task_type = $3)
		  AND ($4::text IS NULL OR status = $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.AccountID),
		nullString(filter.City),
		nullString(string(filter.Type)),
		nullString(string(filter.Status)),
		limitOrDefault(filter.Limit, 50, 500),
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

// --- Helpers ---

func taskTypes(types []domain.TaskType) []string {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var externalID, listingURL, claimedBy, lastError *string

	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.City,
		&t.Type,
		&t.Status,
		&externalID,
		&listingURL,
		&t.Attempts,
		&claimedBy,
		&t.ClaimedAt,
		&lastError,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.ExternalID = deref(externalID)
	t.ListingURL = deref(listingURL)
	t.ClaimedBy = deref(claimedBy)
	t.LastError = deref(lastError)
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
