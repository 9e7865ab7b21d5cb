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

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, owner_id, kind, balance, version, created_at, updated_at`

// EnsureAccount creates the account with a zero balance if absent and
// returns the current row.
func (r *AccountRepo) EnsureAccount(ctx context.Context, ownerID uuid.UUID, kind domain.AccountKind) (*domain.Account, error) {
	insert := `INSERT INTO accounts (id, owner_id, kind, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, NOW(), NOW())
		ON CONFLICT (owner_id, kind) DO NOTHING`

	if _, err := r.pool.Exec(ctx, insert, uuid.New(), ownerID, kind); err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}
	return r.GetByOwner(ctx, ownerID, kind)
}

// GetByID fetches an account by its UUID (without locking).
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id), "get account by id")
}

// GetByOwner fetches an account by owner and kind (non-locking read).
func (r *AccountRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID, kind domain.AccountKind) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 AND kind = $2`
	return scanAccount(r.pool.QueryRow(ctx, query, ownerID, kind), "get account by owner")
}

// GetForUpdate fetches an account by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(tx.QueryRow(ctx, query, id), "get account for update")
}

// UpdateBalance sets the balance and bumps the version counter within a
// transaction. The row must already be locked via GetForUpdate.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $1, version = version + 1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, accountID)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", accountID)
	}
	return nil
}

func scanAccount(row pgx.Row, op string) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.ID, &a.OwnerID, &a.Kind, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}
