package handler

import (
	"time"

	"token-ledger/internal/adapter/http/dto"
	"token-ledger/internal/adapter/http/middleware"
	"token-ledger/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func toSessionResponse(s *domain.PaymentSession) dto.SessionResponse {
	resp := dto.SessionResponse{
		ID:           s.ID.String(),
		MerchantID:   s.MerchantID.String(),
		AmountTokens: s.AmountTokens.String(),
		AmountEur:    s.AmountEur.String(),
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
		ExpiresAt:    s.ExpiresAt.Format(time.RFC3339),
	}
	resp.PaidAt = timePtr(s.PaidAt)
	return resp
}

func toEntryResponse(e *domain.LedgerEntry) dto.EntryResponse {
	return dto.EntryResponse{
		ID:            e.ID.String(),
		DebitAccount:  e.DebitAccount.String(),
		CreditAccount: e.CreditAccount.String(),
		Amount:        e.Amount.String(),
		Kind:          string(e.Kind),
		Reference:     e.Reference,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
}

func toClearingResponse(r *domain.ClearingRequest) dto.ClearingResponse {
	return dto.ClearingResponse{
		ID:              r.ID.String(),
		MerchantID:      r.MerchantID.String(),
		RequestedTokens: r.RequestedTokens.String(),
		EurEstimate:     r.EurEstimate.String(),
		Status:          string(r.Status),
		RequestedBy:     r.RequestedBy.String(),
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		ApprovedAt:      timePtr(r.ApprovedAt),
		ApprovedBy:      uuidPtr(r.ApprovedBy),
		RejectedAt:      timePtr(r.RejectedAt),
		RejectedBy:      uuidPtr(r.RejectedBy),
		PaidAt:          timePtr(r.PaidAt),
		PaidBy:          uuidPtr(r.PaidBy),
	}
}

func toPackResponse(p *domain.TopupPack) dto.PackResponse {
	return dto.PackResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		Tokens:    p.Tokens.String(),
		SortOrder: p.SortOrder,
	}
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func uuidPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// principalID reads the verified principal set by the auth middleware.
func principalID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get(middleware.CtxPrincipalID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := raw.(uuid.UUID)
	return id, ok
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(middleware.CtxRole) == middleware.RoleAdmin
}
