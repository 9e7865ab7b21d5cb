package service

import (
	"context"
	"fmt"
	"time"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SessionServiceImpl implements ports.SessionService. The pending -> paid
// transition and the spend transfer commit in a single transaction; a
// concurrent confirm loses the row lock race and observes SessionNotPending.
type SessionServiceImpl struct {
	sessionRepo ports.SessionRepository
	catalogRepo ports.CatalogRepository
	accountRepo ports.AccountRepository
	transfer    ports.TransferService
	transactor  ports.DBTransactor
	defaultTTL  time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewSessionService creates a new SessionServiceImpl.
func NewSessionService(
	sessionRepo ports.SessionRepository,
	catalogRepo ports.CatalogRepository,
	accountRepo ports.AccountRepository,
	transfer ports.TransferService,
	transactor ports.DBTransactor,
	defaultTTL time.Duration,
	log zerolog.Logger,
) *SessionServiceImpl {
	return &SessionServiceImpl{
		sessionRepo: sessionRepo,
		catalogRepo: catalogRepo,
		accountRepo: accountRepo,
		transfer:    transfer,
		transactor:  transactor,
		defaultTTL:  defaultTTL,
		log:         log,
		now:         time.Now,
	}
}

// Create opens a pending session priced from the merchant's euro price table.
func (s *SessionServiceImpl) Create(ctx context.Context, merchantID uuid.UUID, amountEur decimal.Decimal, createdBy uuid.UUID) (*domain.PaymentSession, error) {
	price, err := s.catalogRepo.GetPrice(ctx, merchantID, amountEur)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup price: %w", err))
	}
	if price == nil {
		return nil, apperror.ErrUnpricedAmount()
	}

	ttl := s.sessionTTL(ctx)
	now := s.now().UTC()
	session := &domain.PaymentSession{
		ID:           uuid.New(),
		MerchantID:   merchantID,
		AmountTokens: price.CostTokens,
		AmountEur:    amountEur,
		Status:       domain.SessionStatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create session: %w", err))
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("merchant_id", merchantID.String()).
		Str("created_by", createdBy.String()).
		Str("amount_tokens", session.AmountTokens.String()).
		Msg("payment session created")

	return session, nil
}

// Preview returns the session for the payer's confirmation screen. A pending
// session past its deadline is rewritten to expired before being returned,
// so the stored status stays truthful for audit.
func (s *SessionServiceImpl) Preview(ctx context.Context, sessionID uuid.UUID) (*domain.PaymentSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get session: %w", err))
	}
	if session == nil {
		return nil, apperror.ErrSessionNotFound()
	}

	if session.Status == domain.SessionStatusPending && session.ExpiredBy(s.now()) {
		if err := s.expire(ctx, sessionID); err != nil {
			return nil, err
		}
		session.Status = domain.SessionStatusExpired
	}
	return session, nil
}

// Confirm settles a pending session: the payer's wallet is debited, the
// merchant's available balance credited, and the session marked paid, all in
// one commit. On InsufficientFunds the session stays pending so the payer
// may retry or abandon.
func (s *SessionServiceImpl) Confirm(ctx context.Context, sessionID, payerID uuid.UUID) (*domain.LedgerEntry, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	session, err := s.sessionRepo.GetForUpdate(ctx, dbTx, sessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock session: %w", err))
	}
	if session == nil {
		return nil, apperror.ErrSessionNotFound()
	}
	if session.Status != domain.SessionStatusPending {
		return nil, apperror.ErrSessionNotPending()
	}

	now := s.now().UTC()
	if session.ExpiredBy(now) {
		// Lazy expiry: persist the terminal status, then reject.
		if _, err := s.sessionRepo.UpdateStatus(ctx, dbTx, sessionID, domain.SessionStatusPending, domain.SessionStatusExpired, nil); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("expire session: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit expiry: %w", err))
		}
		return nil, apperror.ErrSessionExpired()
	}

	payer, err := s.accountRepo.GetByOwner(ctx, payerID, domain.AccountKindUser)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payer account: %w", err))
	}
	if payer == nil {
		return nil, apperror.ErrUnknownAccount()
	}
	merchant, err := s.accountRepo.GetByOwner(ctx, session.MerchantID, domain.AccountKindMerchantAvailable)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get merchant account: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrUnknownAccount()
	}

	entry, err := s.transfer.TransferInTx(ctx, dbTx, ports.TransferRequest{
		From:      payer.ID,
		To:        merchant.ID,
		Amount:    session.AmountTokens,
		Kind:      domain.EntryKindSpend,
		Reference: session.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	ok, err := s.sessionRepo.UpdateStatus(ctx, dbTx, sessionID, domain.SessionStatusPending, domain.SessionStatusPaid, &now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark session paid: %w", err))
	}
	if !ok {
		return nil, apperror.ErrSessionNotPending()
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("payer_id", payerID.String()).
		Str("entry_id", entry.ID.String()).
		Msg("payment session confirmed")

	return entry, nil
}

// Cancel transitions a pending session to cancelled. Only the owning
// merchant may cancel; there is no ledger effect.
func (s *SessionServiceImpl) Cancel(ctx context.Context, sessionID, merchantID uuid.UUID) (*domain.PaymentSession, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	session, err := s.sessionRepo.GetForUpdate(ctx, dbTx, sessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock session: %w", err))
	}
	if session == nil {
		return nil, apperror.ErrSessionNotFound()
	}
	if session.MerchantID != merchantID {
		return nil, apperror.ErrForbidden()
	}
	if session.Status != domain.SessionStatusPending {
		return nil, apperror.ErrSessionNotPending()
	}
	if session.ExpiredBy(s.now()) {
		if _, err := s.sessionRepo.UpdateStatus(ctx, dbTx, sessionID, domain.SessionStatusPending, domain.SessionStatusExpired, nil); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("expire session: %w", err))
		}
		if err := dbTx.Commit(ctx); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("commit expiry: %w", err))
		}
		return nil, apperror.ErrSessionExpired()
	}

	ok, err := s.sessionRepo.UpdateStatus(ctx, dbTx, sessionID, domain.SessionStatusPending, domain.SessionStatusCancelled, nil)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("cancel session: %w", err))
	}
	if !ok {
		return nil, apperror.ErrSessionNotPending()
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	session.Status = domain.SessionStatusCancelled
	s.log.Info().Str("session_id", sessionID.String()).Msg("payment session cancelled")
	return session, nil
}

// ListByMerchant returns the merchant's most recent sessions.
func (s *SessionServiceImpl) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.PaymentSession, error) {
	sessions, err := s.sessionRepo.ListByMerchant(ctx, merchantID, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list sessions: %w", err))
	}
	return sessions, nil
}

// expire rewrites a pending session to expired in its own transaction.
func (s *SessionServiceImpl) expire(ctx context.Context, sessionID uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// CAS from pending: a concurrent confirm or cancel may have won; that is
	// fine, the caller re-reads decision state from the status field.
	if _, err := s.sessionRepo.UpdateStatus(ctx, dbTx, sessionID, domain.SessionStatusPending, domain.SessionStatusExpired, nil); err != nil {
		return apperror.InternalError(fmt.Errorf("expire session: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit expiry: %w", err))
	}
	return nil
}

// sessionTTL reads the configured TTL from the settings row, falling back to
// the engine default when unset.
func (s *SessionServiceImpl) sessionTTL(ctx context.Context) time.Duration {
	settings, err := s.catalogRepo.GetSettings(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("settings lookup failed, using default session TTL")
		return s.defaultTTL
	}
	if settings == nil || settings.SessionTTL <= 0 {
		return s.defaultTTL
	}
	return settings.SessionTTL
}
