package ports

import (
	"context"
	"time"

	"token-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Service Ports (Business Logic) ---

// TransferRequest holds validated input for one atomic token movement.
type TransferRequest struct {
	From      uuid.UUID // debit account id
	To        uuid.UUID // credit account id
	Amount    decimal.Decimal
	Kind      domain.EntryKind
	Reference string // unique per business operation (session id, request id, ...)
}

// TransferService is the transfer engine: it moves tokens between two
// accounts, writing the paired ledger entry in the same commit.
type TransferService interface {
	// Transfer runs in its own transaction. A repeated call with a
	// (Kind, Reference) pair already recorded returns the prior entry.
	Transfer(ctx context.Context, req TransferRequest) (*domain.LedgerEntry, error)
	// TransferInTx composes the movement into a caller-owned transaction so
	// a status transition and its transfer commit atomically.
	TransferInTx(ctx context.Context, tx pgx.Tx, req TransferRequest) (*domain.LedgerEntry, error)
}

// SessionService drives the payment session state machine.
type SessionService interface {
	Create(ctx context.Context, merchantID uuid.UUID, amountEur decimal.Decimal, createdBy uuid.UUID) (*domain.PaymentSession, error)
	// Preview is the read used by the payer before confirming. A pending
	// session past its deadline is rewritten to expired first.
	Preview(ctx context.Context, sessionID uuid.UUID) (*domain.PaymentSession, error)
	Confirm(ctx context.Context, sessionID, payerID uuid.UUID) (*domain.LedgerEntry, error)
	Cancel(ctx context.Context, sessionID, merchantID uuid.UUID) (*domain.PaymentSession, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.PaymentSession, error)
}

// ClearingService drives the clearing request state machine.
type ClearingService interface {
	Request(ctx context.Context, merchantID uuid.UUID, requestedTokens decimal.Decimal, requestedBy uuid.UUID) (*domain.ClearingRequest, error)
	Approve(ctx context.Context, requestID, adminID uuid.UUID) (*domain.ClearingRequest, error)
	Reject(ctx context.Context, requestID, adminID uuid.UUID) (*domain.ClearingRequest, error)
	MarkPaid(ctx context.Context, requestID, adminID uuid.UUID) (*domain.ClearingRequest, error)
	Get(ctx context.Context, requestID uuid.UUID) (*domain.ClearingRequest, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.ClearingRequest, error)
	// ListForAdmin returns pending, approved, and paid requests, newest first.
	ListForAdmin(ctx context.Context) ([]domain.ClearingRequest, error)
}

// TopupService credits user wallets from the treasury.
type TopupService interface {
	BuyPack(ctx context.Context, userID, packID uuid.UUID) (*domain.LedgerEntry, error)
	AdminCredit(ctx context.Context, userID uuid.UUID, tokens decimal.Decimal, adminID uuid.UUID) (*domain.LedgerEntry, error)
	ListPacks(ctx context.Context) ([]domain.TopupPack, error)
}

// MerchantBalance is the two-part merchant position.
type MerchantBalance struct {
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
}

// AccountAudit is the result of cross-checking a stored running balance
// against the balance implied by the entry log.
type AccountAudit struct {
	AccountID  uuid.UUID       `json:"account_id"`
	Stored     decimal.Decimal `json:"stored"`
	Derived    decimal.Decimal `json:"derived"`
	Consistent bool            `json:"consistent"`
}

// ReportingService exposes the read side: balances and entry history.
type ReportingService interface {
	UserBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	MerchantBalance(ctx context.Context, merchantID uuid.UUID) (*MerchantBalance, error)
	History(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error)
	AuditAccount(ctx context.Context, accountID uuid.UUID) (*AccountAudit, error)
}

// --- Infrastructure Ports ---

// IdempotencyCache is the Redis-layer transfer result cache (fast path).
// Postgres remains the source of truth; cache failures are tolerated.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IdentityClaims is the verified principal supplied by the authentication
// collaborator. The engine trusts it without re-verifying credentials.
type IdentityClaims struct {
	PrincipalID uuid.UUID
	Role        string // "user", "merchant", or "admin"
}

// TokenVerifier parses and validates an identity token.
type TokenVerifier interface {
	Validate(tokenString string) (*IdentityClaims, error)
}
