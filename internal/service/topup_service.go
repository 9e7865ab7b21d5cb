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

// TopupServiceImpl implements ports.TopupService. Top-ups mint tokens from
// the treasury, so a retried purchase of the same pack by the same user is
// absorbed by transfer idempotency rather than double crediting.
type TopupServiceImpl struct {
	catalogRepo ports.CatalogRepository
	accountRepo ports.AccountRepository
	transfer    ports.TransferService
	log         zerolog.Logger
}

// NewTopupService creates a new TopupServiceImpl.
func NewTopupService(
	catalogRepo ports.CatalogRepository,
	accountRepo ports.AccountRepository,
	transfer ports.TransferService,
	log zerolog.Logger,
) *TopupServiceImpl {
	return &TopupServiceImpl{
		catalogRepo: catalogRepo,
		accountRepo: accountRepo,
		transfer:    transfer,
		log:         log,
	}
}

// BuyPack credits the user's wallet with the pack's token amount. The
// reference is derived from the pack and user, so replaying the same
// purchase returns the original entry.
func (s *TopupServiceImpl) BuyPack(ctx context.Context, userID, packID uuid.UUID) (*domain.LedgerEntry, error) {
	pack, err := s.catalogRepo.GetPack(ctx, packID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get pack: %w", err))
	}
	if pack == nil || !pack.IsActive {
		return nil, apperror.ErrUnknownOrInactivePack()
	}

	userAccount, err := s.accountRepo.EnsureAccount(ctx, userID, domain.AccountKindUser)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure user account: %w", err))
	}
	treasury, err := s.accountRepo.EnsureAccount(ctx, domain.TreasuryOwnerID, domain.AccountKindTreasury)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure treasury account: %w", err))
	}

	entry, err := s.transfer.Transfer(ctx, ports.TransferRequest{
		From:      treasury.ID,
		To:        userAccount.ID,
		Amount:    pack.Tokens,
		Kind:      domain.EntryKindTopup,
		Reference: fmt.Sprintf("TOPUP-%s-%s", packID, userID),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("pack_id", packID.String()).
		Str("tokens", pack.Tokens.String()).
		Msg("pack purchased")

	return entry, nil
}

// AdminCredit grants tokens to a user outside the pack catalog. Each grant
// gets a fresh reference, so repeated grants are distinct entries.
func (s *TopupServiceImpl) AdminCredit(ctx context.Context, userID uuid.UUID, tokens decimal.Decimal, adminID uuid.UUID) (*domain.LedgerEntry, error) {
	if !domain.ValidTokenAmount(tokens) {
		return nil, apperror.ErrInvalidAmount()
	}

	userAccount, err := s.accountRepo.EnsureAccount(ctx, userID, domain.AccountKindUser)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure user account: %w", err))
	}
	treasury, err := s.accountRepo.EnsureAccount(ctx, domain.TreasuryOwnerID, domain.AccountKindTreasury)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure treasury account: %w", err))
	}

	entry, err := s.transfer.Transfer(ctx, ports.TransferRequest{
		From:      treasury.ID,
		To:        userAccount.ID,
		Amount:    tokens,
		Kind:      domain.EntryKindTopup,
		Reference: fmt.Sprintf("ADMIN-%s-%s", userID, uuid.New()),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("admin_id", adminID.String()).
		Str("tokens", tokens.String()).
		Msg("admin credit granted")

	return entry, nil
}

// ListPacks returns the purchasable packs in display order.
func (s *TopupServiceImpl) ListPacks(ctx context.Context) ([]domain.TopupPack, error) {
	packs, err := s.catalogRepo.ListActivePacks(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list packs: %w", err))
	}
	return packs, nil
}
