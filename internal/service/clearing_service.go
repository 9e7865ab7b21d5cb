package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ClearingServiceImpl implements ports.ClearingService. Every status
// transition that moves tokens commits the transition row and the ledger
// transfer atomically, so a request can never be marked paid without its
// payout entry existing.
type ClearingServiceImpl struct {
	clearingRepo ports.ClearingRepository
	accountRepo  ports.AccountRepository
	catalogRepo  ports.CatalogRepository
	transfer     ports.TransferService
	transactor   ports.DBTransactor
	defaultRate  decimal.Decimal
	log          zerolog.Logger
	now          func() time.Time
}

// NewClearingService creates a new ClearingServiceImpl.
func NewClearingService(
	clearingRepo ports.ClearingRepository,
	accountRepo ports.AccountRepository,
	catalogRepo ports.CatalogRepository,
	transfer ports.TransferService,
	transactor ports.DBTransactor,
	defaultRate decimal.Decimal,
	log zerolog.Logger,
) *ClearingServiceImpl {
	return &ClearingServiceImpl{
		clearingRepo: clearingRepo,
		accountRepo:  accountRepo,
		catalogRepo:  catalogRepo,
		transfer:     transfer,
		transactor:   transactor,
		defaultRate:  defaultRate,
		log:          log,
		now:          time.Now,
	}
}

// Request opens a clearing request and escrows the requested tokens from the
// merchant's available balance into its pending balance, atomically.
func (s *ClearingServiceImpl) Request(ctx context.Context, merchantID uuid.UUID, requestedTokens decimal.Decimal, requestedBy uuid.UUID) (*domain.ClearingRequest, error) {
	if !domain.ValidTokenAmount(requestedTokens) {
		return nil, apperror.ErrInvalidAmount()
	}

	available, err := s.accountRepo.GetByOwner(ctx, merchantID, domain.AccountKindMerchantAvailable)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get available account: %w", err))
	}
	if available == nil {
		return nil, apperror.ErrUnknownAccount()
	}
	pending, err := s.accountRepo.EnsureAccount(ctx, merchantID, domain.AccountKindMerchantPending)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure pending account: %w", err))
	}

	rate := s.tokenRate(ctx)
	now := s.now().UTC()
	request := &domain.ClearingRequest{
		ID:              uuid.New(),
		MerchantID:      merchantID,
		RequestedTokens: requestedTokens,
		EurEstimate:     requestedTokens.Mul(rate).Round(domain.EurScale),
		Status:          domain.ClearingStatusPending,
		RequestedBy:     requestedBy,
		CreatedAt:       now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.clearingRepo.Create(ctx, dbTx, request); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create clearing request: %w", err))
	}
	if _, err := s.transfer.TransferInTx(ctx, dbTx, ports.TransferRequest{
		From:      available.ID,
		To:        pending.ID,
		Amount:    requestedTokens,
		Kind:      domain.EntryKindClearingEscrow,
		Reference: request.ID.String(),
	}); err != nil {
		return nil, asInsufficientAvailable(err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("request_id", request.ID.String()).
		Str("merchant_id", merchantID.String()).
		Str("tokens", requestedTokens.String()).
		Str("eur_estimate", request.EurEstimate.String()).
		Msg("clearing requested")

	return request, nil
}

// Approve moves a pending request to approved. No tokens move; the escrow
// already happened at request time.
func (s *ClearingServiceImpl) Approve(ctx context.Context, requestID, adminID uuid.UUID) (*domain.ClearingRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	request, err := s.lockTransitionable(ctx, dbTx, requestID, domain.ClearingStatusApproved)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	ok, err := s.clearingRepo.Transition(ctx, dbTx, requestID, request.Status, domain.ClearingStatusApproved, adminID, at)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("approve clearing: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidTransition()
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	request.Status = domain.ClearingStatusApproved
	request.ApprovedAt = &at
	request.ApprovedBy = &adminID
	s.log.Info().Str("request_id", requestID.String()).Str("admin_id", adminID.String()).Msg("clearing approved")
	return request, nil
}

// Reject moves a pending request to rejected and returns the escrowed tokens
// from the merchant's pending balance to its available balance.
func (s *ClearingServiceImpl) Reject(ctx context.Context, requestID, adminID uuid.UUID) (*domain.ClearingRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	request, err := s.lockTransitionable(ctx, dbTx, requestID, domain.ClearingStatusRejected)
	if err != nil {
		return nil, err
	}

	available, pending, err := s.merchantAccounts(ctx, request.MerchantID)
	if err != nil {
		return nil, err
	}
	if _, err := s.transfer.TransferInTx(ctx, dbTx, ports.TransferRequest{
		From:      pending.ID,
		To:        available.ID,
		Amount:    request.RequestedTokens,
		Kind:      domain.EntryKindClearingReversal,
		Reference: request.ID.String(),
	}); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	ok, err := s.clearingRepo.Transition(ctx, dbTx, requestID, request.Status, domain.ClearingStatusRejected, adminID, at)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reject clearing: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidTransition()
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	request.Status = domain.ClearingStatusRejected
	request.RejectedAt = &at
	request.RejectedBy = &adminID
	s.log.Info().Str("request_id", requestID.String()).Str("admin_id", adminID.String()).Msg("clearing rejected")
	return request, nil
}

// MarkPaid settles an approved request: the escrowed tokens leave the
// merchant's pending balance for the treasury, recording that the fiat
// payout happened outside the ledger.
func (s *ClearingServiceImpl) MarkPaid(ctx context.Context, requestID, adminID uuid.UUID) (*domain.ClearingRequest, error) {
	treasury, err := s.accountRepo.EnsureAccount(ctx, domain.TreasuryOwnerID, domain.AccountKindTreasury)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure treasury account: %w", err))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	request, err := s.lockTransitionable(ctx, dbTx, requestID, domain.ClearingStatusPaid)
	if err != nil {
		return nil, err
	}

	_, pending, err := s.merchantAccounts(ctx, request.MerchantID)
	if err != nil {
		return nil, err
	}
	if _, err := s.transfer.TransferInTx(ctx, dbTx, ports.TransferRequest{
		From:      pending.ID,
		To:        treasury.ID,
		Amount:    request.RequestedTokens,
		Kind:      domain.EntryKindClearingPayout,
		Reference: request.ID.String(),
	}); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	ok, err := s.clearingRepo.Transition(ctx, dbTx, requestID, request.Status, domain.ClearingStatusPaid, adminID, at)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark clearing paid: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInvalidTransition()
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	request.Status = domain.ClearingStatusPaid
	request.PaidAt = &at
	request.PaidBy = &adminID
	s.log.Info().Str("request_id", requestID.String()).Str("admin_id", adminID.String()).Msg("clearing paid")
	return request, nil
}

// Get returns a single clearing request.
func (s *ClearingServiceImpl) Get(ctx context.Context, requestID uuid.UUID) (*domain.ClearingRequest, error) {
	request, err := s.clearingRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get clearing request: %w", err))
	}
	if request == nil {
		return nil, apperror.ErrClearingNotFound()
	}
	return request, nil
}

// ListByMerchant returns the merchant's most recent clearing requests.
func (s *ClearingServiceImpl) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.ClearingRequest, error) {
	requests, err := s.clearingRepo.ListByMerchant(ctx, merchantID, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list clearing requests: %w", err))
	}
	return requests, nil
}

// ListForAdmin returns the open work queue: requests that are pending,
// approved, or paid. Rejected requests are not shown.
func (s *ClearingServiceImpl) ListForAdmin(ctx context.Context) ([]domain.ClearingRequest, error) {
	requests, err := s.clearingRepo.ListByStatuses(ctx, []domain.ClearingStatus{
		domain.ClearingStatusPending,
		domain.ClearingStatusApproved,
		domain.ClearingStatusPaid,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list clearing requests: %w", err))
	}
	return requests, nil
}

// lockTransitionable locks the request row and verifies the state machine
// allows moving to the target status.
func (s *ClearingServiceImpl) lockTransitionable(ctx context.Context, dbTx pgx.Tx, requestID uuid.UUID, to domain.ClearingStatus) (*domain.ClearingRequest, error) {
	request, err := s.clearingRepo.GetForUpdate(ctx, dbTx, requestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock clearing request: %w", err))
	}
	if request == nil {
		return nil, apperror.ErrClearingNotFound()
	}
	if !request.CanTransition(to) {
		return nil, apperror.ErrInvalidTransition()
	}
	return request, nil
}

func (s *ClearingServiceImpl) merchantAccounts(ctx context.Context, merchantID uuid.UUID) (available, pending *domain.Account, err error) {
	available, err = s.accountRepo.GetByOwner(ctx, merchantID, domain.AccountKindMerchantAvailable)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("get available account: %w", err))
	}
	pending, err = s.accountRepo.GetByOwner(ctx, merchantID, domain.AccountKindMerchantPending)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("get pending account: %w", err))
	}
	if available == nil || pending == nil {
		return nil, nil, apperror.ErrUnknownAccount()
	}
	return available, pending, nil
}

// tokenRate reads the indicative token/EUR rate from settings, falling back
// to the configured default.
func (s *ClearingServiceImpl) tokenRate(ctx context.Context) decimal.Decimal {
	settings, err := s.catalogRepo.GetSettings(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("settings lookup failed, using default token rate")
		return s.defaultRate
	}
	if settings == nil || settings.TokenEurRate.IsZero() {
		return s.defaultRate
	}
	return settings.TokenEurRate
}

// asInsufficientAvailable rewrites an insufficient funds failure into the
// clearing specific code so callers see which balance was short.
func asInsufficientAvailable(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Code == apperror.ErrInsufficientFunds().Code {
		return apperror.ErrInsufficientAvailable()
	}
	return err
}
