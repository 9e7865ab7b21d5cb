package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SessionRepo implements ports.SessionRepository.
type SessionRepo struct {
	pool Pool
}

// NewSessionRepo creates a new SessionRepo.
func NewSessionRepo(pool Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, merchant_id, amount_tokens, amount_eur, status, created_at, expires_at, paid_at`

// Create inserts a new payment session.
func (r *SessionRepo) Create(ctx context.Context, s *domain.PaymentSession) error {
	query := `INSERT INTO payment_sessions (id, merchant_id, amount_tokens, amount_eur, status, created_at, expires_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.MerchantID, s.AmountTokens, s.AmountEur, s.Status, s.CreatedAt, s.ExpiresAt, s.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment session: %w", err)
	}
	return nil
}

// GetByID fetches a session by UUID (without locking).
func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, query, id))
}

// GetForUpdate fetches a session with pessimistic locking.
// This MUST be called within a transaction.
func (r *SessionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE id = $1 FOR UPDATE`
	return scanSession(tx.QueryRow(ctx, query, id))
}

// UpdateStatus performs the compare-and-set transition from -> to within a
// transaction. Returns false when the row was not in the `from` status, so
// the loser of a race observes a clean rejection instead of a lost update.
func (r *SessionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.SessionStatus, paidAt *time.Time) (bool, error) {
	query := `UPDATE payment_sessions SET status = $1, paid_at = $2 WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query, to, paidAt, id, from)
	if err != nil {
		return false, fmt.Errorf("update session status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByMerchant fetches the merchant's most recent sessions.
func (r *SessionRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.PaymentSession, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions
		WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payment sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.PaymentSession
	for rows.Next() {
		var s domain.PaymentSession
		if err := rows.Scan(&s.ID, &s.MerchantID, &s.AmountTokens, &s.AmountEur, &s.Status, &s.CreatedAt, &s.ExpiresAt, &s.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payment session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row pgx.Row) (*domain.PaymentSession, error) {
	s := &domain.PaymentSession{}
	err := row.Scan(&s.ID, &s.MerchantID, &s.AmountTokens, &s.AmountEur, &s.Status, &s.CreatedAt, &s.ExpiresAt, &s.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment session: %w", err)
	}
	return s, nil
}
