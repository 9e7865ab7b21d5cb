package handler

import (
	"token-ledger/internal/adapter/http/dto"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"
	"token-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TopupHandler handles pack listing and wallet top-up endpoints.
type TopupHandler struct {
	topupSvc ports.TopupService
}

// NewTopupHandler creates a new TopupHandler.
func NewTopupHandler(topupSvc ports.TopupService) *TopupHandler {
	return &TopupHandler{topupSvc: topupSvc}
}

// ListPacks handles GET /api/v1/packs.
func (h *TopupHandler) ListPacks(c *gin.Context) {
	packs, err := h.topupSvc.ListPacks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PackResponse, 0, len(packs))
	for i := range packs {
		items = append(items, toPackResponse(&packs[i]))
	}
	response.OK(c, items)
}

// BuyPack handles POST /api/v1/topups.
func (h *TopupHandler) BuyPack(c *gin.Context) {
	userID, ok := principalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.BuyPackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	packID, err := uuid.Parse(req.PackID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid pack_id"))
		return
	}

	entry, err := h.topupSvc.BuyPack(c.Request.Context(), userID, packID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toEntryResponse(entry))
}

// AdminCredit handles POST /api/v1/admin/credits.
func (h *TopupHandler) AdminCredit(c *gin.Context) {
	adminID, ok := principalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.AdminCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid user_id"))
		return
	}
	tokens, err := decimal.NewFromString(req.Tokens)
	if err != nil {
		response.Error(c, apperror.Validation("invalid tokens"))
		return
	}

	entry, err := h.topupSvc.AdminCredit(c.Request.Context(), userID, tokens, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toEntryResponse(entry))
}
