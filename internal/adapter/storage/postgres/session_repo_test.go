package postgres

import (
	"context"
	"testing"
	"time"

	"token-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(merchantID uuid.UUID) *domain.PaymentSession {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.PaymentSession{
		ID:           uuid.New(),
		MerchantID:   merchantID,
		AmountTokens: decimal.RequireFromString("30"),
		AmountEur:    decimal.RequireFromString("3.00"),
		Status:       domain.SessionStatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(15 * time.Minute),
	}
}

func sessionColumnNames() []string {
	return []string{"id", "merchant_id", "amount_tokens", "amount_eur", "status", "created_at", "expires_at", "paid_at"}
}

func sessionRow(s *domain.PaymentSession) *pgxmock.Rows {
	return pgxmock.NewRows(sessionColumnNames()).AddRow(
		s.ID, s.MerchantID, s.AmountTokens, s.AmountEur, s.Status, s.CreatedAt, s.ExpiresAt, s.PaidAt,
	)
}

func TestSessionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSessionRepo(mock)
	s := newTestSession(uuid.New())

	mock.ExpectExec("INSERT INTO payment_sessions").
		WithArgs(s.ID, s.MerchantID, s.AmountTokens, s.AmountEur, s.Status, s.CreatedAt, s.ExpiresAt, s.PaidAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), s)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSessionRepo(mock)
	s := newTestSession(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM payment_sessions WHERE id").
		WithArgs(s.ID).
		WillReturnRows(sessionRow(s))

	result, err := repo.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, s.MerchantID, result.MerchantID)
	assert.Equal(t, domain.SessionStatusPending, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSessionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM payment_sessions WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(sessionColumnNames()))

	result, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSessionRepo(mock)
	s := newTestSession(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM payment_sessions WHERE id .+ FOR UPDATE").
		WithArgs(s.ID).
		WillReturnRows(sessionRow(s))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetForUpdate(context.Background(), tx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, s.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSessionRepo(mock)
	id := uuid.New()
	paidAt := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_sessions SET status").
		WithArgs(domain.SessionStatusPaid, &paidAt, id, domain.SessionStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.UpdateStatus(context.Background(), tx, id, domain.SessionStatusPending, domain.SessionStatusPaid, &paidAt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_UpdateStatus_LostRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSessionRepo(mock)
	id := uuid.New()

	// A concurrent confirm already moved the row out of pending: zero rows
	// match the compare-and-set predicate.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_sessions SET status").
		WithArgs(domain.SessionStatusCancelled, (*time.Time)(nil), id, domain.SessionStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.UpdateStatus(context.Background(), tx, id, domain.SessionStatusPending, domain.SessionStatusCancelled, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_ListByMerchant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSessionRepo(mock)
	merchantID := uuid.New()
	s1 := newTestSession(merchantID)
	s2 := newTestSession(merchantID)
	s2.Status = domain.SessionStatusPaid

	mock.ExpectQuery("SELECT .+ FROM payment_sessions").
		WithArgs(merchantID, 10).
		WillReturnRows(pgxmock.NewRows(sessionColumnNames()).
			AddRow(s1.ID, s1.MerchantID, s1.AmountTokens, s1.AmountEur, s1.Status, s1.CreatedAt, s1.ExpiresAt, s1.PaidAt).
			AddRow(s2.ID, s2.MerchantID, s2.AmountTokens, s2.AmountEur, s2.Status, s2.CreatedAt, s2.ExpiresAt, s2.PaidAt))

	sessions, err := repo.ListByMerchant(context.Background(), merchantID, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, s1.ID, sessions[0].ID)
	assert.Equal(t, domain.SessionStatusPaid, sessions[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepo_ListByMerchant_ClampsLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSessionRepo(mock)
	merchantID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM payment_sessions").
		WithArgs(merchantID, 20).
		WillReturnRows(pgxmock.NewRows(sessionColumnNames()))

	sessions, err := repo.ListByMerchant(context.Background(), merchantID, 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}
