package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Prospector/internal/domain"
)

const leadColumns = `id, account_id, source, external_id, listing_url, city, phone, email,
	state, lead_status, listing, created_at, updated_at`

// LeadRepo — репозиторий лидов.
type LeadRepo struct {
	pool *pgxpool.Pool
}

// NewLeadRepo создаёт новый LeadRepo.
func NewLeadRepo(pool *pgxpool.Pool) *LeadRepo {
	return &LeadRepo{pool: pool}
}

// UpsertFromListing создаёт лид или обновляет поля объявления (last write wins).
// Состояние и lead_status существующего лида не меняются.
func (r *LeadRepo) UpsertFromListing(ctx context.Context, lead *domain.Lead) (*domain.Lead, error) {
	listingJSON, err := json.Marshal(lead.Listing)
	if err != nil {
		return nil, fmt.Errorf("marshal listing: %w", err)
	}

	query := `
		INSERT INTO leads (id, account_id, source, external_id, listing_url, city, phone, email,
		                   state, listing, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (account_id, source, external_id) DO UPDATE
		SET listing_url = EXCLUDED.listing_url,
		    city        = EXCLUDED.city,
		    phone       = EXCLUDED.phone,
		    email       = EXCLUDED.email,
		    listing     = EXCLUDED.listing,
		    updated_at  = now()
		RETURNING ` + leadColumns
	return scanLead(r.pool.QueryRow(ctx, query,
		lead.ID,
		lead.AccountID,
		lead.Source,
		lead.ExternalID,
		lead.ListingURL,
		nullString(lead.City),
		nullString(lead.Phone),
		nullString(lead.Email),
		lead.State,
		listingJSON,
		lead.CreatedAt,
	))
}

// GetByID возвращает лид по ID.
func (r *LeadRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return lead, err
}

// FindByContact ищет лид аккаунта по email, затем по телефону.
// При нескольких совпадениях берётся последний обновлённый.
func (r *LeadRepo) FindByContact(ctx context.Context, accountID uuid.UUID, email, phone string) (*domain.Lead, error) {
	if email = strings.TrimSpace(email); email != "" {
		lead, err := scanLead(r.pool.QueryRow(ctx, `
			SELECT `+leadColumns+` FROM leads
			WHERE account_id = $1 AND lower(email) = lower($2)
			ORDER BY updated_at DESC LIMIT 1
		`, accountID, email))
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	if phone = domain.NormalizePhone(phone); phone != "" {
		lead, err := scanLead(r.pool.QueryRow(ctx, `
			SELECT `+leadColumns+` FROM leads
			WHERE account_id = $1 AND phone = $2
			ORDER BY updated_at DESC LIMIT 1
		`, accountID, phone))
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	return nil, ErrNotFound
}

// SetState переводит лид в новое состояние по правилам обычного потока.
// Повторная установка того же состояния — no-op.
//
// Если в новом состоянии лиду больше не пишут (engaged и дальше, dead),
// нетерминальные касания отменяются в той же транзакции. Возвращает число отменённых.
func (r *LeadRepo) SetState(ctx context.Context, id uuid.UUID, to domain.LeadState) (int64, error) {
	var canceled int64

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current domain.LeadState
		err := tx.QueryRow(ctx, `SELECT state FROM leads WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock lead: %w", err)
		}

		if current == to {
			return nil
		}
		if !current.CanTransition(to) {
			return fmt.Errorf("%w: lead %s → %s", ErrInvalidState, current, to)
		}

		if _, err := tx.Exec(ctx, `UPDATE leads SET state = $2, updated_at = now() WHERE id = $1`, id, to); err != nil {
			return fmt.Errorf("update lead state: %w", err)
		}

		if to.Contactable() {
			return nil
		}
		canceled, err = cancelLeadTouches(ctx, tx, id, domain.CancelReasonForState(to))
		return err
	})
	if err != nil {
		return 0, err
	}
	return canceled, nil
}

// ListWithoutDelivery возвращает лиды с пригодным телефоном, для которых ещё нет доставки.
func (r *LeadRepo) ListWithoutDelivery(ctx context.Context, accountID *uuid.UUID, limit int) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		WHERE ($1::uuid IS NULL OR l.account_id = $1)
		  AND length(coalesce(l.phone, '')) >= 10
		  AND NOT EXISTS (SELECT 1 FROM deliveries d WHERE d.lead_id = l.id)
		ORDER BY l.created_at ASC
		LIMIT $2
	`, nullUUID(accountID), limitOrDefault(limit, 100, 1000))
	if err != nil {
		return nil, fmt.Errorf("list leads without delivery: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

// ApplyInterrupt в одной транзакции:
//  1. блокирует лид (SELECT ... FOR UPDATE)
//  2. записывает событие в журнал inbound_events (повтор → Deduped)
//  3. продвигает состояние лида, не откатывая его назад
//  4. отменяет все нетерминальные касания лида
//
// Повторное применение безопасно: все UPDATE условные.
func (r *LeadRepo) ApplyInterrupt(ctx context.Context, in domain.Interrupt) (domain.InterruptResult, error) {
	var res domain.InterruptResult

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var accountID uuid.UUID
		var current domain.LeadState
		var leadStatus *string
		err := tx.QueryRow(ctx, `
			SELECT account_id, state, lead_status FROM leads WHERE id = $1 FOR UPDATE
		`, in.LeadID).Scan(&accountID, &current, &leadStatus)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock lead: %w", err)
		}

		if in.EventID != "" {
			tag, err := tx.Exec(ctx, `
				INSERT INTO inbound_events (account_id, event_id, kind, lead_id)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (account_id, event_id) DO NOTHING
			`, accountID, in.EventID, in.Kind, in.LeadID)
			if err != nil {
				return fmt.Errorf("record inbound event: %w", err)
			}
			res.Deduped = tag.RowsAffected() == 0
		}

		next := domain.NextState(current, in.Target)
		status := domain.NextLeadStatus(deref(leadStatus), in, res.Deduped)

		if next != current || status != deref(leadStatus) {
			_, err := tx.Exec(ctx, `
				UPDATE leads SET state = $2, lead_status = $3, updated_at = now() WHERE id = $1
			`, in.LeadID, next, nullString(status))
			if err != nil {
				return fmt.Errorf("update lead: %w", err)
			}
			res.StateChanged = next != current
		}
		res.State = next

		res.Canceled, err = cancelLeadTouches(ctx, tx, in.LeadID, in.Reason)
		return err
	})
	if err != nil {
		return domain.InterruptResult{}, err
	}
	return res, nil
}

// --- Helpers ---

// cancelLeadTouches отменяет все нетерминальные касания лида внутри tx.
func cancelLeadTouches(ctx context.Context, tx pgx.Tx, leadID uuid.UUID, reason string) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE touch_runs
		SET status = 'canceled',
		    error = $2,
		    meta = meta || jsonb_build_object('cancel_reason', $2::text, 'canceled_at', now()),
		    updated_at = now()
		WHERE lead_id = $1 AND status IN ('queued', 'scheduled', 'executing')
	`, leadID, reason)
	if err != nil {
		return 0, fmt.Errorf("cancel touches: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var l domain.Lead
	var city, phone, email, leadStatus *string
	var listingJSON []byte

	err := row.Scan(
		&l.ID,
		&l.AccountID,
		&l.Source,
		&l.ExternalID,
		&l.ListingURL,
		&city,
		&phone,
		&email,
		&l.State,
		&leadStatus,
		&listingJSON,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan lead: %w", err)
	}

	l.City = deref(city)
	l.Phone = deref(phone)
	l.Email = deref(email)
	l.LeadStatus = deref(leadStatus)
	if listingJSON != nil {
		if err := json.Unmarshal(listingJSON, &l.Listing); err != nil {
			return nil, fmt.Errorf("unmarshal listing: %w", err)
		}
	}
	return &l, nil
}
