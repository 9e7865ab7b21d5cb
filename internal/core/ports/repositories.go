package ports

import (
	"context"
	"time"

	"token-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for balance accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	// EnsureAccount creates the account with a zero balance if it does not
	// exist yet and returns the current row either way.
	EnsureAccount(ctx context.Context, ownerID uuid.UUID, kind domain.AccountKind) (*domain.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID, kind domain.AccountKind) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	// UpdateBalance sets the balance and bumps the version counter. Must be
	// called with the row already locked via GetForUpdate.
	UpdateBalance(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, balance decimal.Decimal) error
}

// EntryRepository defines persistence for the append-only ledger entry log.
type EntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	// GetByKindAndReference returns the prior entry for a (kind, reference)
	// pair, or nil. This is the durable idempotency check.
	GetByKindAndReference(ctx context.Context, kind domain.EntryKind, reference string) (*domain.LedgerEntry, error)
	// GetByKindAndReferenceInTx is the same check run inside a transaction,
	// after the account locks have been acquired.
	GetByKindAndReferenceInTx(ctx context.Context, tx pgx.Tx, kind domain.EntryKind, reference string) (*domain.LedgerEntry, error)
	// ListByAccount returns entries touching the account (debit or credit
	// side), newest first, with the total count for pagination.
	ListByAccount(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error)
	// SumDeltas recomputes the account balance implied by the entry log:
	// sum(credits) - sum(debits).
	SumDeltas(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

// SessionRepository defines persistence for payment sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.PaymentSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentSession, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PaymentSession, error)
	// UpdateStatus performs the compare-and-set transition from -> to.
	// Returns false when the row was not in the `from` status.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.SessionStatus, paidAt *time.Time) (bool, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.PaymentSession, error)
}

// ClearingRepository defines persistence for clearing requests.
type ClearingRepository interface {
	Create(ctx context.Context, tx pgx.Tx, request *domain.ClearingRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ClearingRequest, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ClearingRequest, error)
	// Transition performs the compare-and-set status move from -> to,
	// recording the acting admin and timestamp for the target status.
	// Returns false when the row was not in the `from` status.
	Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.ClearingStatus, adminID uuid.UUID, at time.Time) (bool, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.ClearingRequest, error)
	ListByStatuses(ctx context.Context, statuses []domain.ClearingStatus) ([]domain.ClearingRequest, error)
}

// CatalogRepository reads the externally managed pricing data: top-up packs,
// the per-merchant price table, and the settings row (rate + session TTL).
// The engine treats these as configuration, not owned state.
type CatalogRepository interface {
	GetPack(ctx context.Context, id uuid.UUID) (*domain.TopupPack, error)
	ListActivePacks(ctx context.Context) ([]domain.TopupPack, error)
	GetPrice(ctx context.Context, merchantID uuid.UUID, amountEur decimal.Decimal) (*domain.PricePoint, error)
	GetSettings(ctx context.Context) (*domain.Settings, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
