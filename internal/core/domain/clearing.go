package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClearingStatus is the lifecycle state of a clearing request.
type ClearingStatus string

const (
	ClearingStatusPending  ClearingStatus = "pending"
	ClearingStatusApproved ClearingStatus = "approved"
	ClearingStatusRejected ClearingStatus = "rejected"
	ClearingStatusPaid     ClearingStatus = "paid"
)

// ClearingRequest is a merchant request to convert escrowed tokens into a
// euro payout. Only administrators move it past pending; rejected and paid
// rows are immutable.
type ClearingRequest struct {
	ID              uuid.UUID       `json:"id"`
	MerchantID      uuid.UUID       `json:"merchant_id"`
	RequestedTokens decimal.Decimal `json:"requested_tokens"`
	EurEstimate     decimal.Decimal `json:"eur_estimate"` // requested_tokens x rate, snapshotted at request time
	Status          ClearingStatus  `json:"status"`
	RequestedBy     uuid.UUID       `json:"requested_by"`
	CreatedAt       time.Time       `json:"created_at"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy      *uuid.UUID      `json:"approved_by,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	RejectedBy      *uuid.UUID      `json:"rejected_by,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	PaidBy          *uuid.UUID      `json:"paid_by,omitempty"`
}

// IsTerminal returns true once no further transition is allowed.
func (r *ClearingRequest) IsTerminal() bool {
	return r.Status == ClearingStatusRejected || r.Status == ClearingStatusPaid
}

// clearingTransitions maps each status to the statuses reachable from it.
var clearingTransitions = map[ClearingStatus][]ClearingStatus{
	ClearingStatusPending:  {ClearingStatusApproved, ClearingStatusRejected},
	ClearingStatusApproved: {ClearingStatusPaid},
}

// CanTransition reports whether the request may move to the target status.
func (r *ClearingRequest) CanTransition(to ClearingStatus) bool {
	for _, next := range clearingTransitions[r.Status] {
		if next == to {
			return true
		}
	}
	return false
}
