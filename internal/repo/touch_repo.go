package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Prospector/internal/domain"
)

const touchColumns = `id, account_id, lead_id, campaign_id, step, channel, status, payload,
	scheduled_at, sent_at, error, meta, created_at, updated_at`

// TouchRepo — репозиторий касаний (touch_runs).
type TouchRepo struct {
	pool *pgxpool.Pool
}

// NewTouchRepo создаёт новый TouchRepo.
func NewTouchRepo(pool *pgxpool.Pool) *TouchRepo {
	return &TouchRepo{pool: pool}
}

// CreateCadence записывает лида в кампанию.
//
// В одной транзакции с блокировкой лида: проверяет, что лид ещё contactable,
// переводит его в attempting и вставляет касания. Повторная запись в ту же
// кампанию пропускает уже существующие шаги. Возвращает число вставленных касаний.
func (r *TouchRepo) CreateCadence(ctx context.Context, leadID uuid.UUID, runs []domain.TouchRun) (int, error) {
	inserted := 0

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var state domain.LeadState
		err := tx.QueryRow(ctx, `SELECT state FROM leads WHERE id = $1 FOR UPDATE`, leadID).Scan(&state)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock lead: %w", err)
		}
		if !state.Contactable() {
			return fmt.Errorf("%w: lead is %s", ErrInvalidState, state)
		}

		if state.CanTransition(domain.LeadStateAttempting) {
			_, err := tx.Exec(ctx, `
				UPDATE leads SET state = 'attempting', updated_at = now() WHERE id = $1
			`, leadID)
			if err != nil {
				return fmt.Errorf("update lead state: %w", err)
			}
		}

		for i := range runs {
			run := &runs[i]
			payloadJSON, err := json.Marshal(run.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload: %w", err)
			}
			metaJSON, err := json.Marshal(nonNilMap(run.Meta))
			if err != nil {
				return fmt.Errorf("marshal meta: %w", err)
			}

			tag, err := tx.Exec(ctx, `
				INSERT INTO touch_runs (id, account_id, lead_id, campaign_id, step, channel, status,
				                        payload, scheduled_at, meta, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
				ON CONFLICT (lead_id, campaign_id, step) WHERE campaign_id IS NOT NULL DO NOTHING
			`,
				run.ID,
				run.AccountID,
				leadID,
				nullUUID(run.CampaignID),
				run.Step,
				run.Channel,
				run.Status,
				payloadJSON,
				run.ScheduledAt,
				metaJSON,
				run.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert touch: %w", err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Promote переводит queued-касания, чьё время наступит в пределах horizon, в scheduled.
func (r *TouchRepo) Promote(ctx context.Context, horizon time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE touch_runs
		SET status = 'scheduled', updated_at = now()
		WHERE status = 'queued' AND scheduled_at <= now() + make_interval(secs => $1)
	`, seconds(horizon))
	if err != nil {
		return 0, fmt.Errorf("promote touches: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClaimDue захватывает касания, чьё время наступило.
//
// Захватываются только queued/scheduled касания лидов, которые ещё contactable.
// Отменённое касание не может быть захвачено: interrupt и claim конкурируют
// за одни и те же строки через блокировки.
func (r *TouchRepo) ClaimDue(ctx context.Context, workerID string, limit int) ([]domain.TouchRun, error) {
	rows, err := r.pool.Query(ctx, `
		WITH cte AS (
			SELECT t.id
			FROM touch_runs t
			JOIN leads l ON l.id = t.lead_id
			WHERE t.status IN ('queued', 'scheduled')
			  AND t.scheduled_at <= now()
			  AND l.state IN ('new', 'enriched', 'attempting')
			ORDER BY t.scheduled_at ASC
			FOR UPDATE OF t SKIP LOCKED
			LIMIT $2
		)
		UPDATE touch_runs t
		SET status = 'executing', claimed_by = $1, claimed_at = now(), updated_at = now()
		FROM cte
		WHERE t.id = cte.id
		RETURNING t.id, t.account_id, t.lead_id, t.campaign_id, t.step, t.channel, t.status, t.payload,
		          t.scheduled_at, t.sent_at, t.error, t.meta, t.created_at, t.updated_at
	`, workerID, limitOrDefault(limit, 1, 100))
	if err != nil {
		return nil, fmt.Errorf("claim touches: %w", err)
	}
	return collectTouches(rows)
}

// ClaimByID захватывает одно касание вне расписания (ручной запуск, ad-hoc).
// Возвращает ErrInvalidState, если касание не queued/scheduled или лид не contactable.
func (r *TouchRepo) ClaimByID(ctx context.Context, id uuid.UUID, workerID string) (*domain.TouchRun, error) {
	touch, err := scanTouch(r.pool.QueryRow(ctx, `
		UPDATE touch_runs t
		SET status = 'executing', claimed_by = $2, claimed_at = now(), updated_at = now()
		FROM leads l
		WHERE t.id = $1
		  AND l.id = t.lead_id
		  AND t.status IN ('queued', 'scheduled')
		  AND l.state IN ('new', 'enriched', 'attempting')
		RETURNING t.id, t.account_id, t.lead_id, t.campaign_id, t.step, t.channel, t.status, t.payload,
		          t.scheduled_at, t.sent_at, t.error, t.meta, t.created_at, t.updated_at
	`, id, workerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidState
	}
	return touch, err
}

// CreateAdHoc вставляет разовое касание (step из зарезервированного диапазона).
func (r *TouchRepo) CreateAdHoc(ctx context.Context, run *domain.TouchRun) error {
	if run.Step < domain.AdHocStepBase {
		return fmt.Errorf("%w: ad-hoc step %d below %d", ErrInvalidState, run.Step, domain.AdHocStepBase)
	}
	payloadJSON, err := json.Marshal(run.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	metaJSON, err := json.Marshal(nonNilMap(run.Meta))
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO touch_runs (id, account_id, lead_id, step, channel, status, payload,
		                        scheduled_at, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, run.ID, run.AccountID, run.LeadID, run.Step, run.Channel, run.Status,
		payloadJSON, run.ScheduledAt, metaJSON, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ad-hoc touch: %w", err)
	}
	return nil
}

// NextAdHocStep возвращает следующий свободный step в ad-hoc диапазоне лида.
func (r *TouchRepo) NextAdHocStep(ctx context.Context, leadID uuid.UUID) (int, error) {
	var step int
	err := r.pool.QueryRow(ctx, `
		SELECT coalesce(max(step) + 1, $2) FROM touch_runs WHERE lead_id = $1 AND step >= $2
	`, leadID, domain.AdHocStepBase).Scan(&step)
	if err != nil {
		return 0, fmt.Errorf("next ad-hoc step: %w", err)
	}
	return step, nil
}

// MarkSent завершает касание успешно. Только из executing:
// касание, отменённое во время отправки, остаётся canceled (ErrInvalidState).
func (r *TouchRepo) MarkSent(ctx context.Context, id uuid.UUID, providerID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE touch_runs
		SET status = 'sent', sent_at = now(), error = NULL,
		    meta = meta || jsonb_build_object('provider_id', $2::text),
		    updated_at = now()
		WHERE id = $1 AND status = 'executing'
	`, id, providerID)
	if err != nil {
		return fmt.Errorf("mark touch sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// MarkFailed завершает касание с ошибкой. Только из executing.
func (r *TouchRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE touch_runs
		SET status = 'failed', error = $2, updated_at = now()
		WHERE id = $1 AND status = 'executing'
	`, id, errMsg)
	if err != nil {
		return fmt.Errorf("mark touch failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// Reclaim переводит зависшие executing-касания в failed.
// Повторно они не отправляются: неизвестно, ушло ли сообщение.
func (r *TouchRepo) Reclaim(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE touch_runs
		SET status = 'failed', error = 'claim expired', updated_at = now()
		WHERE status = 'executing' AND claimed_at < now() - make_interval(secs => $1)
	`, seconds(olderThan))
	if err != nil {
		return 0, fmt.Errorf("reclaim touches: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ApplyProviderStatus записывает статус провайдера в meta. Статус касания не меняется.
// Касание другого аккаунта считается ненайденным.
func (r *TouchRepo) ApplyProviderStatus(ctx context.Context, accountID, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE touch_runs
		SET meta = meta || jsonb_build_object('provider_status', $2::text, 'provider_status_at', now()),
		    updated_at = now()
		WHERE id = $1 AND account_id = $3
	`, id, status, accountID)
	if err != nil {
		return fmt.Errorf("apply provider status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает касание по ID.
func (r *TouchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TouchRun, error) {
	touch, err := scanTouch(r.pool.QueryRow(ctx, `SELECT `+touchColumns+` FROM touch_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return touch, err
}

// ListByLead возвращает касания лида в порядке step.
func (r *TouchRepo) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.TouchRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+touchColumns+` FROM touch_runs WHERE lead_id = $1 ORDER BY step ASC, created_at ASC
	`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list touches: %w", err)
	}
	return collectTouches(rows)
}

// CountNonTerminal возвращает число queued/scheduled/executing касаний лида.
func (r *TouchRepo) CountNonTerminal(ctx context.Context, leadID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM touch_runs
		WHERE lead_id = $1 AND status IN ('queued', 'scheduled', 'executing')
	`, leadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count touches: %w", err)
	}
	return n, nil
}

// --- Helpers ---

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func scanTouch(row pgx.Row) (*domain.TouchRun, error) {
	var t domain.TouchRun
	var errText *string
	var payloadJSON, metaJSON []byte

	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.LeadID,
		&t.CampaignID,
		&t.Step,
		&t.Channel,
		&t.Status,
		&payloadJSON,
		&t.ScheduledAt,
		&t.SentAt,
		&errText,
		&metaJSON,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan touch: %w", err)
	}

	t.Error = deref(errText)
	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &t.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if metaJSON != nil {
		if err := json.Unmarshal(metaJSON, &t.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal meta: %w", err)
		}
	}
	return &t, nil
}

func collectTouches(rows pgx.Rows) ([]domain.TouchRun, error) {
	defer rows.Close()

	var out []domain.TouchRun
	for rows.Next() {
		t, err := scanTouch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
