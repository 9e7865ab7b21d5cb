package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus is the lifecycle state of a payment session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusPaid      SessionStatus = "paid"
	SessionStatusExpired   SessionStatus = "expired"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// PaymentSession is a short-lived, priced request for a user to pay a
// merchant a fixed token amount. Sessions are never deleted; terminal rows
// are retained for audit.
type PaymentSession struct {
	ID           uuid.UUID       `json:"id"`
	MerchantID   uuid.UUID       `json:"merchant_id"`
	AmountTokens decimal.Decimal `json:"amount_tokens"`
	AmountEur    decimal.Decimal `json:"amount_eur"` // the price it was created from, display only
	Status       SessionStatus   `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
}

// IsTerminal returns true if the session can no longer change state.
func (s *PaymentSession) IsTerminal() bool {
	return s.Status != SessionStatusPending
}

// ExpiredBy reports whether the session has passed its deadline at the given
// instant. Expiry is lazy: a pending session past its deadline must be
// treated as expired by every reader even before the stored status catches up.
func (s *PaymentSession) ExpiredBy(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
