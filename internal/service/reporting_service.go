package service

import (
	"context"
	"fmt"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReportingServiceImpl implements ports.ReportingService with read-only
// queries over accounts and the entry log.
type ReportingServiceImpl struct {
	accountRepo ports.AccountRepository
	entryRepo   ports.EntryRepository
	log         zerolog.Logger
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(accountRepo ports.AccountRepository, entryRepo ports.EntryRepository, log zerolog.Logger) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		log:         log,
	}
}

// UserBalance returns the user's wallet balance.
func (s *ReportingServiceImpl) UserBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	account, err := s.accountRepo.GetByOwner(ctx, userID, domain.AccountKindUser)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("get user account: %w", err))
	}
	if account == nil {
		return decimal.Zero, apperror.ErrUnknownAccount()
	}
	return account.Balance, nil
}

// MerchantBalance returns the merchant's available and pending balances. A
// merchant with no pending account yet reports zero pending.
func (s *ReportingServiceImpl) MerchantBalance(ctx context.Context, merchantID uuid.UUID) (*ports.MerchantBalance, error) {
	available, err := s.accountRepo.GetByOwner(ctx, merchantID, domain.AccountKindMerchantAvailable)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get available account: %w", err))
	}
	if available == nil {
		return nil, apperror.ErrUnknownAccount()
	}

	balance := &ports.MerchantBalance{Available: available.Balance, Pending: decimal.Zero}
	pending, err := s.accountRepo.GetByOwner(ctx, merchantID, domain.AccountKindMerchantPending)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get pending account: %w", err))
	}
	if pending != nil {
		balance.Pending = pending.Balance
	}
	return balance, nil
}

// History returns the account's entries, newest first, with the total count
// for pagination.
func (s *ReportingServiceImpl) History(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, 0, apperror.ErrUnknownAccount()
	}

	entries, total, err := s.entryRepo.ListByAccount(ctx, accountID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list entries: %w", err))
	}
	return entries, total, nil
}

// AuditAccount recomputes the account balance from the entry log and reports
// whether it matches the stored running balance.
func (s *ReportingServiceImpl) AuditAccount(ctx context.Context, accountID uuid.UUID) (*ports.AccountAudit, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrUnknownAccount()
	}

	derived, err := s.entryRepo.SumDeltas(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum entries: %w", err))
	}

	audit := &ports.AccountAudit{
		AccountID:  accountID,
		Stored:     account.Balance,
		Derived:    derived,
		Consistent: account.Balance.Equal(derived),
	}
	if !audit.Consistent {
		s.log.Error().
			Str("account_id", accountID.String()).
			Str("stored", audit.Stored.String()).
			Str("derived", audit.Derived.String()).
			Msg("ledger audit mismatch")
	}
	return audit, nil
}
