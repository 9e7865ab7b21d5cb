package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const defaultIdempotencyTTL = 24 * time.Hour

// TransferServiceImpl implements ports.TransferService with pessimistic
// row locking. The debit, the credit, and the ledger entry insertion commit
// as one unit; no intermediate state is observable.
type TransferServiceImpl struct {
	accountRepo ports.AccountRepository
	entryRepo   ports.EntryRepository
	idempCache  ports.IdempotencyCache
	transactor  ports.DBTransactor
	cacheTTL    time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewTransferService creates a new TransferServiceImpl. A non-positive
// cacheTTL falls back to the 24h default.
func NewTransferService(
	accountRepo ports.AccountRepository,
	entryRepo ports.EntryRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *TransferServiceImpl {
	if cacheTTL <= 0 {
		cacheTTL = defaultIdempotencyTTL
	}
	return &TransferServiceImpl{
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		idempCache:  idempCache,
		transactor:  transactor,
		cacheTTL:    cacheTTL,
		log:         log,
		now:         time.Now,
	}
}

// Transfer executes an atomic token movement in its own transaction.
// A repeated call with a (Kind, Reference) pair already recorded is a no-op
// returning the prior entry, so retried calls are safe.
func (s *TransferServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.LedgerEntry, error) {
	if err := validateTransfer(req); err != nil {
		return nil, err
	}

	key := domain.BuildTransferKey(req.Kind, req.Reference)

	// Layer 1: Redis idempotency check
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return unmarshalCachedEntry(cached)
	}

	// Layer 2: DB idempotency check
	prior, err := s.entryRepo.GetByKindAndReference(ctx, req.Kind, req.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if prior != nil {
		return prior, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.TransferInTx(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.cacheEntry(ctx, key, entry)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("kind", string(entry.Kind)).
		Str("reference", entry.Reference).
		Str("amount", entry.Amount.String()).
		Msg("transfer committed")

	return entry, nil
}

// TransferInTx executes the movement inside a caller-owned transaction.
// The caller commits; on error the caller's rollback undoes everything.
func (s *TransferServiceImpl) TransferInTx(ctx context.Context, tx pgx.Tx, req ports.TransferRequest) (*domain.LedgerEntry, error) {
	if err := validateTransfer(req); err != nil {
		return nil, err
	}

	// Lock both rows in ascending UUID order so two transfers touching the
	// same pair in opposite directions cannot deadlock.
	first, second := req.From, req.To
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}

	locked := make(map[uuid.UUID]*domain.Account, 2)
	for _, id := range []uuid.UUID{first, second} {
		acct, err := s.accountRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
		}
		if acct == nil {
			return nil, apperror.ErrUnknownAccount()
		}
		locked[id] = acct
	}
	from, to := locked[req.From], locked[req.To]

	// Re-check idempotency under the locks: a concurrent retry that won the
	// race has committed its entry by the time our lock is granted.
	prior, err := s.entryRepo.GetByKindAndReferenceInTx(ctx, tx, req.Kind, req.Reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency check in tx: %w", err))
	}
	if prior != nil {
		return prior, nil
	}

	if !from.CanDebit(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	if err := s.accountRepo.UpdateBalance(ctx, tx, from.ID, from.Balance.Sub(req.Amount)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit account: %w", err))
	}
	if err := s.accountRepo.UpdateBalance(ctx, tx, to.ID, to.Balance.Add(req.Amount)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit account: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		DebitAccount:  from.ID,
		CreditAccount: to.ID,
		Amount:        req.Amount,
		Kind:          req.Kind,
		Reference:     req.Reference,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	return entry, nil
}

// cacheEntry stores the committed entry in Redis (best-effort).
func (s *TransferServiceImpl) cacheEntry(ctx context.Context, key string, entry *domain.LedgerEntry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache transfer result in redis")
	}
}

func validateTransfer(req ports.TransferRequest) error {
	if !domain.ValidTokenAmount(req.Amount) {
		return apperror.ErrInvalidAmount()
	}
	if req.From == req.To {
		return apperror.Validation("debit and credit accounts must differ")
	}
	if req.Reference == "" {
		return apperror.Validation("transfer reference is required")
	}
	return nil
}

func unmarshalCachedEntry(data []byte) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{}
	if err := json.Unmarshal(data, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached entry: %w", err))
	}
	return entry, nil
}
