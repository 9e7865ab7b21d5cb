package postgres

import (
	"context"
	"errors"
	"fmt"

	"token-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EntryRepo implements ports.EntryRepository. Entries are append-only: there
// is no update or delete path.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

const entryColumns = `id, debit_account, credit_account, amount, kind, reference, created_at`

// Create inserts a ledger entry within a database transaction. The unique
// (kind, reference) index backs transfer idempotency.
func (r *EntryRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, debit_account, credit_account, amount, kind, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.DebitAccount, e.CreditAccount, e.Amount, e.Kind, e.Reference, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByKindAndReference fetches the prior entry for a (kind, reference) pair.
func (r *EntryRepo) GetByKindAndReference(ctx context.Context, kind domain.EntryKind, reference string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE kind = $1 AND reference = $2`
	return scanEntry(r.pool.QueryRow(ctx, query, kind, reference))
}

// GetByKindAndReferenceInTx runs the idempotency check inside a transaction,
// after the account row locks have serialized concurrent callers.
func (r *EntryRepo) GetByKindAndReferenceInTx(ctx context.Context, tx pgx.Tx, kind domain.EntryKind, reference string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE kind = $1 AND reference = $2`
	return scanEntry(tx.QueryRow(ctx, query, kind, reference))
}

// ListByAccount fetches entries touching the account on either side, newest
// first, plus the total count for pagination.
func (r *EntryRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM ledger_entries WHERE debit_account = $1 OR credit_account = $1`
	if err := r.pool.QueryRow(ctx, countQuery, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries
		WHERE debit_account = $1 OR credit_account = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, accountID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.DebitAccount, &e.CreditAccount, &e.Amount, &e.Kind, &e.Reference, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, total, nil
}

// SumDeltas recomputes the balance implied by the log: credits minus debits.
func (r *EntryRepo) SumDeltas(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN credit_account = $1 THEN amount ELSE 0 END), 0) -
		COALESCE(SUM(CASE WHEN debit_account = $1 THEN amount ELSE 0 END), 0)
		FROM ledger_entries WHERE debit_account = $1 OR credit_account = $1`

	var sum decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger deltas: %w", err)
	}
	return sum, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(&e.ID, &e.DebitAccount, &e.CreditAccount, &e.Amount, &e.Kind, &e.Reference, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}
