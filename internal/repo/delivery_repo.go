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
	"github.com/shaiso/Prospector/internal/queue"
)

const deliveryColumns = `id, account_id, lead_id, listing_url, listing_hash, status, attempts,
	claimed_by, last_attempt_at, next_attempt_at, payload, response_status, response_text,
	last_error, created_at, updated_at`

// DeliveryRepo — репозиторий доставок в CRM webhook.
type DeliveryRepo struct {
	pool       *pgxpool.Pool
	visibility time.Duration
}

// NewDeliveryRepo создаёт новый DeliveryRepo.
func NewDeliveryRepo(pool *pgxpool.Pool, visibility time.Duration) *DeliveryRepo {
	if visibility <= 0 {
		visibility = queue.DefaultVisibilityTimeout
	}
	return &DeliveryRepo{pool: pool, visibility: visibility}
}

var _ queue.Claimer[domain.Delivery] = (*DeliveryRepo)(nil)

// Enqueue вставляет доставку, если для (account_id, listing_hash) её ещё нет.
// Возвращает true, если строка создана.
func (r *DeliveryRepo) Enqueue(ctx context.Context, d *domain.Delivery) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO deliveries (id, account_id, lead_id, listing_url, listing_hash, status,
		                        next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'queued', now(), $6, $6)
		ON CONFLICT (account_id, listing_hash) DO NOTHING
	`, d.ID, d.AccountID, d.LeadID, d.ListingURL, d.ListingHash, d.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("enqueue delivery: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// Claim захватывает до limit доставок: queued/failed с наступившим next_attempt_at
// либо sending с протухшим claim'ом. Filter учитывает только AccountID.
func (r *DeliveryRepo) Claim(ctx context.Context, workerID string, filter queue.Filter, limit int) ([]domain.Delivery, error) {
	query := `
		WITH cte AS (
			SELECT id
			FROM deliveries
			WHERE ((status IN ('queued', 'failed') AND next_attempt_at <= now())
			       OR (status = 'sending' AND claimed_at < now() - make_interval(secs => $2)))
			  AND ($3::uuid IS NULL OR account_id = $3)
			ORDER BY next_attempt_at ASC NULLS LAST, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT $4
		)
		UPDATE deliveries d
		SET status = 'sending', claimed_by = $1, claimed_at = now(),
		    attempts = d.attempts + 1, updated_at = now()
		FROM cte
		WHERE d.id = cte.id
		RETURNING d.id, d.account_id, d.lead_id, d.listing_url, d.listing_hash, d.status, d.attempts,
		          d.claimed_by, d.last_attempt_at, d.next_attempt_at, d.payload, d.response_status,
		          d.response_text, d.last_error, d.created_at, d.updated_at
	`
	rows, err := r.pool.Query(ctx, query,
		workerID,
		seconds(r.visibility),
		nullUUID(filter.AccountID),
		limitOrDefault(limit, 1, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("claim deliveries: %w", err)
	}
	return collectDeliveries(rows)
}

// MarkSent фиксирует успешную доставку: next_attempt_at и last_error очищаются.
func (r *DeliveryRepo) MarkSent(ctx context.Context, id uuid.UUID, workerID string, payload map[string]any, res domain.DeliveryResult) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'sent', payload = $3, response_status = $4, response_text = $5,
		    last_error = NULL, next_attempt_at = NULL, last_attempt_at = now(),
		    claimed_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'sending' AND claimed_by = $2
	`, id, workerID, payloadJSON, nullInt(res.StatusCode), nullString(res.Body))
	if err != nil {
		return fmt.Errorf("mark delivery sent: %w", err)
	}
	return r.checkOwned(ctx, id, result.RowsAffected())
}

// MarkFailed фиксирует неудачу.
// nextAttempt == nil — доставка становится dead и больше не захватывается.
func (r *DeliveryRepo) MarkFailed(ctx context.Context, id uuid.UUID, workerID string, payload map[string]any, res domain.DeliveryResult, nextAttempt *time.Time) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	status := domain.DeliveryStatusFailed
	if nextAttempt == nil {
		status = domain.DeliveryStatusDead
	}

	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	} else {
		errMsg = fmt.Sprintf("http %d", res.StatusCode)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = $3, payload = $4, response_status = $5, response_text = $6,
		    last_error = $7, next_attempt_at = $8, last_attempt_at = now(),
		    claimed_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'sending' AND claimed_by = $2
	`, id, workerID, status, payloadJSON, nullInt(res.StatusCode), nullString(res.Body), errMsg, nextAttempt)
	if err != nil {
		return fmt.Errorf("mark delivery failed: %w", err)
	}
	return r.checkOwned(ctx, id, result.RowsAffected())
}

// Reclaim возвращает sending-доставки с протухшим claim'ом в failed (сразу eligible).
func (r *DeliveryRepo) Reclaim(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'failed', claimed_by = NULL, claimed_at = NULL,
		    last_error = 'claim expired', next_attempt_at = now(), updated_at = now()
		WHERE status = 'sending' AND claimed_at < now() - make_interval(secs => $1)
	`, seconds(olderThan))
	if err != nil {
		return 0, fmt.Errorf("reclaim deliveries: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetByID возвращает доставку по ID.
func (r *DeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Delivery, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// DeliveryFilter — параметры фильтрации доставок.
type DeliveryFilter struct {
	AccountID *uuid.UUID
	LeadID    *uuid.UUID
	Status    domain.DeliveryStatus
	Limit     int
	Offset    int
}

// List возвращает доставки, новые первыми.
func (r *DeliveryRepo) List(ctx context.Context, filter DeliveryFilter) ([]domain.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM deliveries
		WHERE ($1::uuid IS NULL OR account_id = $1)
		  AND ($2::uuid IS NULL OR lead_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.AccountID),
		nullUUID(filter.LeadID),
		nullString(string(filter.Status)),
		limitOrDefault(filter.Limit, 50, 500),
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return collectDeliveries(rows)
}

// --- Helpers ---

func (r *DeliveryRepo) checkOwned(ctx context.Context, id uuid.UUID, affected int64) error {
	if affected == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return queue.ErrNotOwner
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	var claimedBy, responseText, lastError *string
	var responseStatus *int
	var payloadJSON []byte

	err := row.Scan(
		&d.ID,
		&d.AccountID,
		&d.LeadID,
		&d.ListingURL,
		&d.ListingHash,
		&d.Status,
		&d.Attempts,
		&claimedBy,
		&d.LastAttemptAt,
		&d.NextAttemptAt,
		&payloadJSON,
		&responseStatus,
		&responseText,
		&lastError,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan delivery: %w", err)
	}

	d.ClaimedBy = deref(claimedBy)
	d.ResponseText = deref(responseText)
	d.LastError = deref(lastError)
	if responseStatus != nil {
		d.ResponseStatus = *responseStatus
	}
	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &d.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &d, nil
}

func collectDeliveries(rows pgx.Rows) ([]domain.Delivery, error) {
	defer rows.Close()

	var out []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
