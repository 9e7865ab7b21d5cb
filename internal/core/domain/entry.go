package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry by the business operation behind it.
type EntryKind string

const (
	EntryKindTopup            EntryKind = "topup"
	EntryKindSpend            EntryKind = "spend"
	EntryKindClearingEscrow   EntryKind = "clearing_escrow"
	EntryKindClearingPayout   EntryKind = "clearing_payout"
	EntryKindClearingReversal EntryKind = "clearing_reversal"
)

// LedgerEntry is the immutable record of one atomic transfer. Entries are
// append-only; the (Kind, Reference) pair is unique and makes retried
// transfers idempotent.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id"`
	DebitAccount  uuid.UUID       `json:"debit_account"`
	CreditAccount uuid.UUID       `json:"credit_account"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          EntryKind       `json:"kind"`
	Reference     string          `json:"reference"`
	CreatedAt     time.Time       `json:"created_at"`
}

// BuildTransferKey constructs the cache key identifying one business
// transfer. Format: "<kind>:<reference>".
func BuildTransferKey(kind EntryKind, reference string) string {
	return string(kind) + ":" + reference
}
