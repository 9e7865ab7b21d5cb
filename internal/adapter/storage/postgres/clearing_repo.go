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

// ClearingRepo implements ports.ClearingRepository.
type ClearingRepo struct {
	pool Pool
}

// NewClearingRepo creates a new ClearingRepo.
func NewClearingRepo(pool Pool) *ClearingRepo {
	return &ClearingRepo{pool: pool}
}

const clearingColumns = `id, merchant_id, requested_tokens, eur_estimate, status, requested_by,
		created_at, approved_at, approved_by, rejected_at, rejected_by, paid_at, paid_by`

// Create inserts a clearing request within a database transaction, so the
// row and its escrow transfer commit together.
func (r *ClearingRepo) Create(ctx context.Context, tx pgx.Tx, req *domain.ClearingRequest) error {
	query := `INSERT INTO clearing_requests (id, merchant_id, requested_tokens, eur_estimate, status, requested_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		req.ID, req.MerchantID, req.RequestedTokens, req.EurEstimate, req.Status, req.RequestedBy, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert clearing request: %w", err)
	}
	return nil
}

// GetByID fetches a clearing request by UUID (without locking).
func (r *ClearingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClearingRequest, error) {
	query := `SELECT ` + clearingColumns + ` FROM clearing_requests WHERE id = $1`
	return scanClearing(r.pool.QueryRow(ctx, query, id))
}

// GetForUpdate fetches a clearing request with pessimistic locking.
// This MUST be called within a transaction.
func (r *ClearingRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ClearingRequest, error) {
	query := `SELECT ` + clearingColumns + ` FROM clearing_requests WHERE id = $1 FOR UPDATE`
	return scanClearing(tx.QueryRow(ctx, query, id))
}

// Transition performs the compare-and-set status move from -> to, stamping
// the acting admin and timestamp for the target status. Returns false when
// the row was not in the `from` status.
func (r *ClearingRepo) Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.ClearingStatus, adminID uuid.UUID, at time.Time) (bool, error) {
	var query string
	switch to {
	case domain.ClearingStatusApproved:
		query = `UPDATE clearing_requests SET status = $1, approved_at = $2, approved_by = $3 WHERE id = $4 AND status = $5`
	case domain.ClearingStatusRejected:
		query = `UPDATE clearing_requests SET status = $1, rejected_at = $2, rejected_by = $3 WHERE id = $4 AND status = $5`
	case domain.ClearingStatusPaid:
		query = `UPDATE clearing_requests SET status = $1, paid_at = $2, paid_by = $3 WHERE id = $4 AND status = $5`
	default:
		return false, fmt.Errorf("unsupported clearing transition target: %s", to)
	}

	tag, err := tx.Exec(ctx, query, to, at, adminID, id, from)
	if err != nil {
		return false, fmt.Errorf("transition clearing request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByMerchant fetches the merchant's most recent clearing requests.
func (r *ClearingRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.ClearingRequest, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	query := `SELECT ` + clearingColumns + ` FROM clearing_requests
		WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list clearing requests: %w", err)
	}
	defer rows.Close()
	return collectClearing(rows)
}

// ListByStatuses fetches all requests in the given statuses, newest first.
func (r *ClearingRepo) ListByStatuses(ctx context.Context, statuses []domain.ClearingStatus) ([]domain.ClearingRequest, error) {
	query := `SELECT ` + clearingColumns + ` FROM clearing_requests
		WHERE status = ANY($1) ORDER BY created_at DESC`

	ss := make([]string, len(statuses))
	for i, st := range statuses {
		ss[i] = string(st)
	}

	rows, err := r.pool.Query(ctx, query, ss)
	if err != nil {
		return nil, fmt.Errorf("list clearing requests by status: %w", err)
	}
	defer rows.Close()
	return collectClearing(rows)
}

func collectClearing(rows pgx.Rows) ([]domain.ClearingRequest, error) {
	var requests []domain.ClearingRequest
	for rows.Next() {
		var req domain.ClearingRequest
		if err := rows.Scan(
			&req.ID, &req.MerchantID, &req.RequestedTokens, &req.EurEstimate, &req.Status, &req.RequestedBy,
			&req.CreatedAt, &req.ApprovedAt, &req.ApprovedBy, &req.RejectedAt, &req.RejectedBy, &req.PaidAt, &req.PaidBy,
		); err != nil {
			return nil, fmt.Errorf("scan clearing request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clearing requests: %w", err)
	}
	return requests, nil
}

func scanClearing(row pgx.Row) (*domain.ClearingRequest, error) {
	req := &domain.ClearingRequest{}
	err := row.Scan(
		&req.ID, &req.MerchantID, &req.RequestedTokens, &req.EurEstimate, &req.Status, &req.RequestedBy,
		&req.CreatedAt, &req.ApprovedAt, &req.ApprovedBy, &req.RejectedAt, &req.RejectedBy, &req.PaidAt, &req.PaidBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get clearing request: %w", err)
	}
	return req, nil
}
