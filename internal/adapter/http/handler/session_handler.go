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

const defaultListLimit = 50

// SessionHandler handles payment session endpoints.
type SessionHandler struct {
	sessionSvc ports.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionSvc ports.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// Create handles POST /api/v1/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	merchantID, ok := principalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amountEur, err := decimal.NewFromString(req.AmountEur)
	if err != nil {
		response.Error(c, apperror.Validation("invalid amount_eur"))
		return
	}

	session, err := h.sessionSvc.Create(c.Request.Context(), merchantID, amountEur, merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toSessionResponse(session))
}

// Preview handles GET /api/v1/sessions/:id.
func (h *SessionHandler) Preview(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid session id"))
		return
	}

	session, err := h.sessionSvc.Preview(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toSessionResponse(session))
}

// Confirm handles POST /api/v1/sessions/:id/confirm.
func (h *SessionHandler) Confirm(c *gin.Context) {
	payerID, ok := principalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid session id"))
		return
	}

	entry, err := h.sessionSvc.Confirm(c.Request.Context(), sessionID, payerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toEntryResponse(entry))
}

// Cancel handles POST /api/v1/sessions/:id/cancel.
func (h *SessionHandler) Cancel(c *gin.Context) {
	merchantID, ok := principalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid session id"))
		return
	}

	session, err := h.sessionSvc.Cancel(c.Request.Context(), sessionID, merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toSessionResponse(session))
}

// List handles GET /api/v1/sessions.
func (h *SessionHandler) List(c *gin.Context) {
	merchantID, ok := principalID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	sessions, err := h.sessionSvc.ListByMerchant(c.Request.Context(), merchantID, defaultListLimit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, toSessionResponse(&sessions[i]))
	}
	response.OK(c, items)
}
