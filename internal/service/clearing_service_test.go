package service

import (
	"context"
	"testing"
	"time"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/internal/core/ports/mocks"
	"token-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type clearingTestDeps struct {
	svc          *ClearingServiceImpl
	clearingRepo *mocks.MockClearingRepository
	accountRepo  *mocks.MockAccountRepository
	catalogRepo  *mocks.MockCatalogRepository
	transfer     *mocks.MockTransferService
	transactor   *mocks.MockDBTransactor
	ctrl         *gomock.Controller
}

func setupClearingService(t *testing.T) *clearingTestDeps {
	ctrl := gomock.NewController(t)
	d := &clearingTestDeps{
		clearingRepo: mocks.NewMockClearingRepository(ctrl),
		accountRepo:  mocks.NewMockAccountRepository(ctrl),
		catalogRepo:  mocks.NewMockCatalogRepository(ctrl),
		transfer:     mocks.NewMockTransferService(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewClearingService(
		d.clearingRepo, d.accountRepo, d.catalogRepo, d.transfer,
		d.transactor, decimal.RequireFromString("0.02"), zerolog.Nop(),
	)
	return d
}

func merchantAccounts(merchantID uuid.UUID) (available, pending *domain.Account) {
	available = &domain.Account{ID: uuid.New(), OwnerID: merchantID, Kind: domain.AccountKindMerchantAvailable, Balance: decimal.RequireFromString("1000")}
	pending = &domain.Account{ID: uuid.New(), OwnerID: merchantID, Kind: domain.AccountKindMerchantPending, Balance: decimal.Zero}
	return available, pending
}

func pendingClearing(merchantID uuid.UUID) *domain.ClearingRequest {
	return &domain.ClearingRequest{
		ID:              uuid.New(),
		MerchantID:      merchantID,
		RequestedTokens: decimal.RequireFromString("500"),
		EurEstimate:     decimal.RequireFromString("10.00"),
		Status:          domain.ClearingStatusPending,
		RequestedBy:     merchantID,
		CreatedAt:       time.Now().UTC(),
	}
}

// ==================== Request Tests ====================

func TestClearingService_Request_Success(t *testing.T) {
	d := setupClearingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	available, pending := merchantAccounts(merchantID)
	tokens := decimal.RequireFromString("500")
	tx := &mockTx{}

	d.accountRepo.EXPECT().GetByOwner(ctx, merchantID, domain.AccountKindMerchantAvailable).Return(available, nil)
	d.accountRepo.EXPECT().EnsureAccount(ctx, merchantID, domain.AccountKindMerchantPending).Return(pending, nil)
	d.catalogRepo.EXPECT().GetSettings(ctx).Return(&domain.Settings{
		TokenEurRate: decimal.RequireFromString("0.02"),
		SessionTTL:   90 * time.Second,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.clearingRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	// Escrow: available -> pending in the same commit as the request row.
	d.transfer.EXPECT().TransferInTx(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ interface{}, req ports.TransferRequest) (*domain.LedgerEntry, error) {
			assert.Equal(t, available.ID, req.From)
			assert.Equal(t, pending.ID, req.To)
			assert.True(t, req.Amount.Equal(tokens))
			assert.Equal(t, domain.EntryKindClearingEscrow, req.Kind)
			return &domain.LedgerEntry{ID: uuid.New()}, nil
		})

	request, err := d.svc.Request(ctx, merchantID, tokens, merchantID)
	require.NoError(t, err)
	require.NotNil(t, request)
	assert.Equal(t, domain.ClearingStatusPending, request.Status)
	// 500 tokens at 0.02 EUR/token.
	assert.True(t, request.EurEstimate.Equal(decimal.RequireFromString("10")))
}

func TestClearingService_Request_InvalidAmount(t *testing.T) {
	d := setupClearingService(t)
	defer d.ctrl.Finish()

	request, err := d.svc.Request(context.Background(), uuid.New(), decimal.Zero, uuid.New())
	assert.Nil(t, request)
	assertAppError(t, err, "LED_002")
}

func TestClearingService_Request_InsufficientAvailable(t *testing.T) {
	d := setupClearingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	available, pending := merchantAccounts(merchantID)
	tx := &mockTx{}

	d.accountRepo.EXPECT().GetByOwner(ctx, merchantID, domain.AccountKindMerchantAvailable).Return(available, nil)
	d.accountRepo.EXPECT().EnsureAccount(ctx, merchantID, domain.AccountKindMerchantPending).Return(pending, nil)
	d.catalogRepo.EXPECT().GetSettings(ctx).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.clearingRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.transfer.EXPECT().TransferInTx(ctx, tx, gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())

	// The generic shortfall is reported as the clearing specific code.
	request, err := d.svc.Request(ctx, merchantID, decimal.RequireFromString("99999"), merchantID)
	assert.Nil(t, request)
	assertAppError(t, err, "CLR_001")
}

// ==================== Transition Tests ====================

func TestClearingService_Approve_Success(t *testing.T) {
	d := setupClearingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	adminID := uuid.New()
	request := pendingClearing(uuid.New())
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.clearingRepo.EXPECT().GetForUpdate(ctx, tx, request.ID).Return(request, nil)
	d.clearingRepo.EXPECT().
		Transition(ctx, tx, request.ID, domain.ClearingStatusPending, domain.ClearingStatusApproved, adminID, gomock.Any()).
		Return(true, nil)

	got, err := d.svc.Approve(ctx, request.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClearingStatusApproved, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, adminID, *got.ApprovedBy)
}

func TestClearingService_Approve_InvalidTransition(t *testing.T) {
	d := setupClearingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	request := pendingClearing(uuid.New())
	request.Status = domain.ClearingStatusRejected
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.clearingRepo.EXPECT().GetForUpdate(ctx, tx, request.ID).Return(request, nil)

	got, err := d.svc.Approve(ctx, request.ID, uuid.New())
	assert.Nil(t, got)
	assertAppError(t, err, "CLR_002")
}

func TestClearingService_Reject_ReturnsEscrow(t *testing.T) {
	d := setupClearingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	adminID := uuid.New()
	merchantID := uuid.New()
	available, pending := merchantAccounts(merchantID)
	request := pendingClearing(merchantID)
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.clearingRepo.EXPECT().GetForUpdate(ctx, tx, request.ID).Return(request, nil)
	d.accountRepo.EXPECT().GetByOwner(ctx, merchantID, domain.AccountKindMerchantAvailable).Return(available, nil)
	d.accountRepo.EXPECT().GetByOwner(ctx, merchantID, domain.AccountKindMerchantPending).Return(pending, nil)
	// Reversal: pending -> available, same reference as the escrow.
	d.transfer.EXPECT().TransferInTx(ctx, tx, ports.TransferRequest{
		From:      pending.ID,
		To:        available.ID,
		Amount:    request.RequestedTokens,
		Kind:      domain.EntryKindClearingReversal,
		Reference: request.ID.String(),
	}).Return(&domain.LedgerEntry{ID: uuid.New()}, nil)
	d.clearingRepo.EXPECT().
		Transition(ctx, tx, request.ID, domain.ClearingStatusPending, domain.ClearingStatusRejected, adminID, gomock.Any()).
		Return(true, nil)

	got, err := d.svc.Reject(ctx, request.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClearingStatusRejected, got.Status)
}

func TestClearingService_MarkPaid_Success(t *testing.T) {
	d := setupClearingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	adminID := uuid.New()
	merchantID := uuid.New()
	available, pending := merchantAccounts(merchantID)
	treasury := &domain.Account{ID: uuid.New(), OwnerID: domain.TreasuryOwnerID, Kind: domain.AccountKindTreasury}
	request := pendingClearing(merchantID)
	request.Status = domain.ClearingStatusApproved
	tx := &mockTx{}

	d.accountRepo.EXPECT().EnsureAccount(ctx, domain.TreasuryOwnerID, domain.AccountKindTreasury).Return(treasury, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.clearingRepo.EXPECT().GetForUpdate(ctx, tx, request.ID).Return(request, nil)
	d.accountRepo.EXPECT().GetByOwner(ctx, merchantID, domain.AccountKindMerchantAvailable).Return(available, nil)
	d.accountRepo.EXPECT().GetByOwner(ctx, merchantID, domain.AccountKindMerchantPending).Return(pending, nil)
	// Payout: escrowed tokens leave the system via the treasury.
	d.transfer.EXPECT().TransferInTx(ctx, tx, ports.TransferRequest{
		From:      pending.ID,
		To:        treasury.ID,
		Amount:    request.RequestedTokens,
		Kind:      domain.EntryKindClearingPayout,
		Reference: request.ID.String(),
	}).Return(&domain.LedgerEntry{ID: uuid.New()}, nil)
	d.clearingRepo.EXPECT().
		Transition(ctx, tx, request.ID, domain.ClearingStatusApproved, domain.ClearingStatusPaid, adminID, gomock.Any()).
		Return(true, nil)

	got, err := d.svc.MarkPaid(ctx, request.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClearingStatusPaid, got.Status)
}

func TestClearingService_MarkPaid_PendingRejected(t *testing.T) {
	d := setupClearingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	treasury := &domain.Account{ID: uuid.New(), Kind: domain.AccountKindTreasury}
	request := pendingClearing(uuid.New())
	tx := &mockTx{}

	d.accountRepo.EXPECT().EnsureAccount(ctx, domain.TreasuryOwnerID, domain.AccountKindTreasury).Return(treasury, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.clearingRepo.EXPECT().GetForUpdate(ctx, tx, request.ID).Return(request, nil)

	// A pending request must be approved before it can be paid.
	got, err := d.svc.MarkPaid(ctx, request.ID, uuid.New())
	assert.Nil(t, got)
	assertAppError(t, err, "CLR_002")
}

func TestClearingService_Get_NotFound(t *testing.T) {
	d := setupClearingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	requestID := uuid.New()
	d.clearingRepo.EXPECT().GetByID(ctx, requestID).Return(nil, nil)

	got, err := d.svc.Get(ctx, requestID)
	assert.Nil(t, got)
	assertAppError(t, err, "CLR_003")
}

func TestClearingService_ListForAdmin_FiltersStatuses(t *testing.T) {
	d := setupClearingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.clearingRepo.EXPECT().
		ListByStatuses(ctx, []domain.ClearingStatus{
			domain.ClearingStatusPending,
			domain.ClearingStatusApproved,
			domain.ClearingStatusPaid,
		}).
		Return([]domain.ClearingRequest{*pendingClearing(uuid.New())}, nil)

	requests, err := d.svc.ListForAdmin(ctx)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}
