package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind classifies a balance record.
type AccountKind string

const (
	AccountKindUser              AccountKind = "user"
	AccountKindMerchantAvailable AccountKind = "merchant_available"
	AccountKindMerchantPending   AccountKind = "merchant_pending"
	AccountKindTreasury          AccountKind = "treasury"
)

// TreasuryOwnerID is the well-known owner of the single treasury account.
// The treasury is the system mint/sink: it emits top-ups and absorbs payouts.
var TreasuryOwnerID = uuid.Nil

// TokenScale is the canonical number of fractional digits for token amounts.
const TokenScale = 4

// EurScale is the number of fractional digits for euro values.
const EurScale = 2

// Account is one balance record. A user owns exactly one `user` account; a
// merchant owns one `merchant_available` and one `merchant_pending` account.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Kind      AccountKind     `json:"kind"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"` // bumped on every balance write
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanDebit reports whether the account may be debited by amount without
// going negative. The treasury is exempt: it mints top-ups.
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	if a.Kind == AccountKindTreasury {
		return true
	}
	return a.Balance.GreaterThanOrEqual(amount)
}

// ValidTokenAmount reports whether amount is positive and carries no more
// than TokenScale fractional digits.
func ValidTokenAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Exponent() >= -TokenScale
}
