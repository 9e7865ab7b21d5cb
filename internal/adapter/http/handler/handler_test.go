package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"token-ledger/internal/adapter/http/dto"
	"token-ledger/internal/adapter/http/middleware"
	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/internal/core/ports/mocks"
	"token-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
		c.Request = httptest.NewRequest(method, target, reader)
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	return c, w
}

func setPrincipal(c *gin.Context, id uuid.UUID, role string) {
	c.Set(middleware.CtxPrincipalID, id)
	c.Set(middleware.CtxRole, role)
}

func testSession(merchantID uuid.UUID) *domain.PaymentSession {
	now := time.Now().UTC()
	return &domain.PaymentSession{
		ID:           uuid.New(),
		MerchantID:   merchantID,
		AmountTokens: decimal.RequireFromString("30"),
		AmountEur:    decimal.RequireFromString("3.00"),
		Status:       domain.SessionStatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(90 * time.Second),
	}
}

func testEntry() *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:            uuid.New(),
		DebitAccount:  uuid.New(),
		CreditAccount: uuid.New(),
		Amount:        decimal.RequireFromString("30"),
		Kind:          domain.EntryKindSpend,
		Reference:     uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
	}
}

// --- Session Handler Tests ---

func TestSessionCreate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSessions := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSessions)

	merchantID := uuid.New()
	session := testSession(merchantID)
	mockSessions.EXPECT().
		Create(gomock.Any(), merchantID, decimal.RequireFromString("3.00"), merchantID).
		Return(session, nil)

	body, _ := json.Marshal(dto.CreateSessionRequest{AmountEur: "3.00"})
	c, w := testContext(t, http.MethodPost, "/api/v1/sessions", body)
	setPrincipal(c, merchantID, middleware.RoleMerchant)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, session.ID.String(), data["id"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "30", data["amount_tokens"])
}

func TestSessionCreate_InvalidAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSessions := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSessions)

	// Three fractional digits exceed the euro scale: rejected at binding.
	body, _ := json.Marshal(dto.CreateSessionRequest{AmountEur: "3.001"})
	c, w := testContext(t, http.MethodPost, "/api/v1/sessions", body)
	setPrincipal(c, uuid.New(), middleware.RoleMerchant)

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionCreate_UnpricedAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSessions := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSessions)

	mockSessions.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrUnpricedAmount())

	body, _ := json.Marshal(dto.CreateSessionRequest{AmountEur: "7.50"})
	c, w := testContext(t, http.MethodPost, "/api/v1/sessions", body)
	setPrincipal(c, uuid.New(), middleware.RoleMerchant)

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionCreate_MissingPrincipal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewSessionHandler(mocks.NewMockSessionService(ctrl))

	body, _ := json.Marshal(dto.CreateSessionRequest{AmountEur: "3.00"})
	c, w := testContext(t, http.MethodPost, "/api/v1/sessions", body)

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionPreview_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSessions := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSessions)

	session := testSession(uuid.New())
	mockSessions.EXPECT().Preview(gomock.Any(), session.ID).Return(session, nil)

	c, w := testContext(t, http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}

	h.Preview(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, session.ID.String(), data["id"])
}

func TestSessionPreview_BadID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewSessionHandler(mocks.NewMockSessionService(ctrl))

	c, w := testContext(t, http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	h.Preview(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionConfirm_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSessions := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSessions)

	payerID := uuid.New()
	sessionID := uuid.New()
	entry := testEntry()
	mockSessions.EXPECT().Confirm(gomock.Any(), sessionID, payerID).Return(entry, nil)

	c, w := testContext(t, http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: sessionID.String()}}
	setPrincipal(c, payerID, middleware.RoleUser)

	h.Confirm(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, entry.ID.String(), data["id"])
	assert.Equal(t, "spend", data["kind"])
}

func TestSessionConfirm_Expired(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSessions := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSessions)

	sessionID := uuid.New()
	mockSessions.EXPECT().Confirm(gomock.Any(), sessionID, gomock.Any()).Return(nil, apperror.ErrSessionExpired())

	c, w := testContext(t, http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: sessionID.String()}}
	setPrincipal(c, uuid.New(), middleware.RoleUser)

	h.Confirm(c)

	assert.Equal(t, http.StatusGone, w.Code)
}

func TestSessionConfirm_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSessions := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSessions)

	sessionID := uuid.New()
	mockSessions.EXPECT().Confirm(gomock.Any(), sessionID, gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())

	c, w := testContext(t, http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: sessionID.String()}}
	setPrincipal(c, uuid.New(), middleware.RoleUser)

	h.Confirm(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestSessionCancel_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSessions := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSessions)

	merchantID := uuid.New()
	session := testSession(merchantID)
	session.Status = domain.SessionStatusCancelled
	mockSessions.EXPECT().Cancel(gomock.Any(), session.ID, merchantID).Return(session, nil)

	c, w := testContext(t, http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: session.ID.String()}}
	setPrincipal(c, merchantID, middleware.RoleMerchant)

	h.Cancel(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "cancelled", data["status"])
}

func TestSessionList_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSessions := mocks.NewMockSessionService(ctrl)
	h := NewSessionHandler(mockSessions)

	merchantID := uuid.New()
	mockSessions.EXPECT().ListByMerchant(gomock.Any(), merchantID, defaultListLimit).
		Return([]domain.PaymentSession{*testSession(merchantID)}, nil)

	c, w := testContext(t, http.MethodGet, "/", nil)
	setPrincipal(c, merchantID, middleware.RoleMerchant)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	items := resp["data"].([]interface{})
	assert.Len(t, items, 1)
}

// --- Clearing Handler Tests ---

func TestClearingCreate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClearing := mocks.NewMockClearingService(ctrl)
	h := NewClearingHandler(mockClearing)

	merchantID := uuid.New()
	request := &domain.ClearingRequest{
		ID:              uuid.New(),
		MerchantID:      merchantID,
		RequestedTokens: decimal.RequireFromString("500"),
		EurEstimate:     decimal.RequireFromString("10.00"),
		Status:          domain.ClearingStatusPending,
		RequestedBy:     merchantID,
		CreatedAt:       time.Now().UTC(),
	}
	mockClearing.EXPECT().
		Request(gomock.Any(), merchantID, decimal.RequireFromString("500"), merchantID).
		Return(request, nil)

	body, _ := json.Marshal(dto.CreateClearingRequest{Tokens: "500"})
	c, w := testContext(t, http.MethodPost, "/api/v1/clearing", body)
	setPrincipal(c, merchantID, middleware.RoleMerchant)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "10", data["eur_estimate"])
}

func TestClearingCreate_InsufficientAvailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClearing := mocks.NewMockClearingService(ctrl)
	h := NewClearingHandler(mockClearing)

	mockClearing.EXPECT().
		Request(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInsufficientAvailable())

	body, _ := json.Marshal(dto.CreateClearingRequest{Tokens: "99999"})
	c, w := testContext(t, http.MethodPost, "/api/v1/clearing", body)
	setPrincipal(c, uuid.New(), middleware.RoleMerchant)

	h.Create(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestClearingGet_OwnRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClearing := mocks.NewMockClearingService(ctrl)
	h := NewClearingHandler(mockClearing)

	merchantID := uuid.New()
	request := &domain.ClearingRequest{
		ID:              uuid.New(),
		MerchantID:      merchantID,
		RequestedTokens: decimal.RequireFromString("100"),
		EurEstimate:     decimal.RequireFromString("2.00"),
		Status:          domain.ClearingStatusPending,
		RequestedBy:     merchantID,
		CreatedAt:       time.Now().UTC(),
	}
	mockClearing.EXPECT().Get(gomock.Any(), request.ID).Return(request, nil)

	c, w := testContext(t, http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: request.ID.String()}}
	setPrincipal(c, merchantID, middleware.RoleMerchant)

	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClearingGet_OtherMerchantForbidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClearing := mocks.NewMockClearingService(ctrl)
	h := NewClearingHandler(mockClearing)

	request := &domain.ClearingRequest{
		ID:         uuid.New(),
		MerchantID: uuid.New(),
		Status:     domain.ClearingStatusPending,
	}
	mockClearing.EXPECT().Get(gomock.Any(), request.ID).Return(request, nil)

	c, w := testContext(t, http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: request.ID.String()}}
	setPrincipal(c, uuid.New(), middleware.RoleMerchant)

	h.Get(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClearingGet_AdminSeesAny(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClearing := mocks.NewMockClearingService(ctrl)
	h := NewClearingHandler(mockClearing)

	request := &domain.ClearingRequest{
		ID:         uuid.New(),
		MerchantID: uuid.New(),
		Status:     domain.ClearingStatusApproved,
	}
	mockClearing.EXPECT().Get(gomock.Any(), request.ID).Return(request, nil)

	c, w := testContext(t, http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: request.ID.String()}}
	setPrincipal(c, uuid.New(), middleware.RoleAdmin)

	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClearingApprove_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClearing := mocks.NewMockClearingService(ctrl)
	h := NewClearingHandler(mockClearing)

	adminID := uuid.New()
	requestID := uuid.New()
	approvedAt := time.Now().UTC()
	mockClearing.EXPECT().Approve(gomock.Any(), requestID, adminID).Return(&domain.ClearingRequest{
		ID:              requestID,
		MerchantID:      uuid.New(),
		RequestedTokens: decimal.RequireFromString("100"),
		EurEstimate:     decimal.RequireFromString("2.00"),
		Status:          domain.ClearingStatusApproved,
		ApprovedAt:      &approvedAt,
		ApprovedBy:      &adminID,
	}, nil)

	c, w := testContext(t, http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: requestID.String()}}
	setPrincipal(c, adminID, middleware.RoleAdmin)

	h.Approve(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "approved", data["status"])
	assert.Equal(t, adminID.String(), data["approved_by"])
}

func TestClearingReject_InvalidTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClearing := mocks.NewMockClearingService(ctrl)
	h := NewClearingHandler(mockClearing)

	requestID := uuid.New()
	mockClearing.EXPECT().Reject(gomock.Any(), requestID, gomock.Any()).Return(nil, apperror.ErrInvalidTransition())

	c, w := testContext(t, http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: requestID.String()}}
	setPrincipal(c, uuid.New(), middleware.RoleAdmin)

	h.Reject(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

// --- Topup Handler Tests ---

func TestListPacks_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTopup := mocks.NewMockTopupService(ctrl)
	h := NewTopupHandler(mockTopup)

	mockTopup.EXPECT().ListPacks(gomock.Any()).Return([]domain.TopupPack{
		{ID: uuid.New(), Name: "Starter", Tokens: decimal.RequireFromString("100"), IsActive: true, SortOrder: 1},
	}, nil)

	c, w := testContext(t, http.MethodGet, "/", nil)

	h.ListPacks(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	items := resp["data"].([]interface{})
	require.Len(t, items, 1)
	pack := items[0].(map[string]interface{})
	assert.Equal(t, "Starter", pack["name"])
}

func TestBuyPack_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTopup := mocks.NewMockTopupService(ctrl)
	h := NewTopupHandler(mockTopup)

	userID := uuid.New()
	packID := uuid.New()
	entry := testEntry()
	entry.Kind = domain.EntryKindTopup
	mockTopup.EXPECT().BuyPack(gomock.Any(), userID, packID).Return(entry, nil)

	body, _ := json.Marshal(dto.BuyPackRequest{PackID: packID.String()})
	c, w := testContext(t, http.MethodPost, "/api/v1/topups", body)
	setPrincipal(c, userID, middleware.RoleUser)

	h.BuyPack(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "topup", data["kind"])
}

func TestBuyPack_UnknownPack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTopup := mocks.NewMockTopupService(ctrl)
	h := NewTopupHandler(mockTopup)

	mockTopup.EXPECT().BuyPack(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrUnknownOrInactivePack())

	body, _ := json.Marshal(dto.BuyPackRequest{PackID: uuid.NewString()})
	c, w := testContext(t, http.MethodPost, "/api/v1/topups", body)
	setPrincipal(c, uuid.New(), middleware.RoleUser)

	h.BuyPack(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminCredit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTopup := mocks.NewMockTopupService(ctrl)
	h := NewTopupHandler(mockTopup)

	adminID := uuid.New()
	userID := uuid.New()
	entry := testEntry()
	entry.Kind = domain.EntryKindTopup
	mockTopup.EXPECT().
		AdminCredit(gomock.Any(), userID, decimal.RequireFromString("250"), adminID).
		Return(entry, nil)

	body, _ := json.Marshal(dto.AdminCreditRequest{UserID: userID.String(), Tokens: "250"})
	c, w := testContext(t, http.MethodPost, "/api/v1/admin/credits", body)
	setPrincipal(c, adminID, middleware.RoleAdmin)

	h.AdminCredit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAdminCredit_NegativeTokensRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewTopupHandler(mocks.NewMockTopupService(ctrl))

	body, _ := json.Marshal(dto.AdminCreditRequest{UserID: uuid.NewString(), Tokens: "-5"})
	c, w := testContext(t, http.MethodPost, "/api/v1/admin/credits", body)
	setPrincipal(c, uuid.New(), middleware.RoleAdmin)

	h.AdminCredit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Wallet Handler Tests ---

func TestUserBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewWalletHandler(mockReporting)

	userID := uuid.New()
	mockReporting.EXPECT().UserBalance(gomock.Any(), userID).Return(decimal.RequireFromString("72.5"), nil)

	c, w := testContext(t, http.MethodGet, "/", nil)
	setPrincipal(c, userID, middleware.RoleUser)

	h.UserBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "72.5", data["balance"])
}

func TestMerchantBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewWalletHandler(mockReporting)

	merchantID := uuid.New()
	mockReporting.EXPECT().MerchantBalance(gomock.Any(), merchantID).Return(&ports.MerchantBalance{
		Available: decimal.RequireFromString("120"),
		Pending:   decimal.RequireFromString("30"),
	}, nil)

	c, w := testContext(t, http.MethodGet, "/", nil)
	setPrincipal(c, merchantID, middleware.RoleMerchant)

	h.MerchantBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "120", data["available"])
	assert.Equal(t, "30", data["pending"])
}

func TestMerchantBalance_UnknownAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewWalletHandler(mockReporting)

	merchantID := uuid.New()
	mockReporting.EXPECT().MerchantBalance(gomock.Any(), merchantID).Return(nil, apperror.ErrUnknownAccount())

	c, w := testContext(t, http.MethodGet, "/", nil)
	setPrincipal(c, merchantID, middleware.RoleMerchant)

	h.MerchantBalance(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistory_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewWalletHandler(mockReporting)

	accountID := uuid.New()
	mockReporting.EXPECT().History(gomock.Any(), accountID, 1, 20).
		Return([]domain.LedgerEntry{*testEntry()}, int64(41), nil)

	c, w := testContext(t, http.MethodGet, "/?page=1&page_size=20", nil)
	c.Params = gin.Params{{Key: "id", Value: accountID.String()}}
	setPrincipal(c, uuid.New(), middleware.RoleAdmin)

	h.History(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	assert.Len(t, items, 1)
	assert.Equal(t, float64(41), data["total"])
	assert.Equal(t, float64(3), data["total_pages"])
}

func TestHistory_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewWalletHandler(mockReporting)

	accountID := uuid.New()
	mockReporting.EXPECT().History(gomock.Any(), accountID, gomock.Any(), gomock.Any()).
		Return(nil, int64(0), apperror.InternalError(errors.New("db down")))

	c, w := testContext(t, http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: accountID.String()}}
	setPrincipal(c, uuid.New(), middleware.RoleAdmin)

	h.History(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAudit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReporting := mocks.NewMockReportingService(ctrl)
	h := NewWalletHandler(mockReporting)

	accountID := uuid.New()
	mockReporting.EXPECT().AuditAccount(gomock.Any(), accountID).Return(&ports.AccountAudit{
		AccountID:  accountID,
		Stored:     decimal.RequireFromString("100"),
		Derived:    decimal.RequireFromString("100"),
		Consistent: true,
	}, nil)

	c, w := testContext(t, http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: accountID.String()}}
	setPrincipal(c, uuid.New(), middleware.RoleAdmin)

	h.Audit(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, true, data["consistent"])
}

// --- Health Check Tests ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(_ context.Context) error { return s.err }
func (s stubChecker) Name() string                 { return s.name }

func TestHealthCheck_AllHealthy(t *testing.T) {
	c, w := testContext(t, http.MethodGet, "/health", nil)

	HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	c, w := testContext(t, http.MethodGet, "/health", nil)

	HealthCheck(
		stubChecker{name: "postgresql"},
		stubChecker{name: "redis", err: errors.New("connection refused")},
	)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	redisDep := deps["redis"].(map[string]interface{})
	assert.Equal(t, "unhealthy", redisDep["status"])
}
