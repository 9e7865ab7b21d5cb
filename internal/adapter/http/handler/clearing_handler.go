package handler

import (
	"context"

	"token-ledger/internal/adapter/http/dto"
	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"
	"token-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClearingHandler handles clearing request endpoints.
type ClearingHandler struct {
	clearingSvc ports.ClearingService
}

// NewClearingHandler creates a new ClearingHandler.
func NewClearingHandler(clearingSvc ports.ClearingService) *ClearingHandler {
	return &ClearingHandler{clearingSvc: clearingSvc}
}

// Create handles POST /api/v1/clearing.
func (h *ClearingHandler) Create(c *gin.Context) {
	merchantID, ok := principalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateClearingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	tokens, err := decimal.NewFromString(req.Tokens)
	if err != nil {
		response.Error(c, apperror.Validation("invalid tokens"))
		return
	}

	request, err := h.clearingSvc.Request(c.Request.Context(), merchantID, tokens, merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toClearingResponse(request))
}

// Get handles GET /api/v1/clearing/:id. Merchants may only read their own
// requests; admins may read any.
func (h *ClearingHandler) Get(c *gin.Context) {
	pid, ok := principalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid request id"))
		return
	}

	request, err := h.clearingSvc.Get(c.Request.Context(), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if request.MerchantID != pid && !isAdmin(c) {
		response.Error(c, apperror.ErrForbidden())
		return
	}
	response.OK(c, toClearingResponse(request))
}

// List handles GET /api/v1/clearing.
func (h *ClearingHandler) List(c *gin.Context) {
	merchantID, ok := principalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	requests, err := h.clearingSvc.ListByMerchant(c.Request.Context(), merchantID, defaultListLimit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toClearingResponses(requests))
}

// ListForAdmin handles GET /api/v1/admin/clearing.
func (h *ClearingHandler) ListForAdmin(c *gin.Context) {
	requests, err := h.clearingSvc.ListForAdmin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toClearingResponses(requests))
}

// Approve handles POST /api/v1/admin/clearing/:id/approve.
func (h *ClearingHandler) Approve(c *gin.Context) {
	h.transition(c, h.clearingSvc.Approve)
}

// Reject handles POST /api/v1/admin/clearing/:id/reject.
func (h *ClearingHandler) Reject(c *gin.Context) {
	h.transition(c, h.clearingSvc.Reject)
}

// MarkPaid handles POST /api/v1/admin/clearing/:id/paid.
func (h *ClearingHandler) MarkPaid(c *gin.Context) {
	h.transition(c, h.clearingSvc.MarkPaid)
}

func (h *ClearingHandler) transition(c *gin.Context, fn func(ctx context.Context, requestID, adminID uuid.UUID) (*domain.ClearingRequest, error)) {
	adminID, ok := principalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid request id"))
		return
	}

	request, err := fn(c.Request.Context(), requestID, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toClearingResponse(request))
}

func toClearingResponses(requests []domain.ClearingRequest) []dto.ClearingResponse {
	items := make([]dto.ClearingResponse, 0, len(requests))
	for i := range requests {
		items = append(items, toClearingResponse(&requests[i]))
	}
	return items
}
