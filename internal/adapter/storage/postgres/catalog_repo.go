package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CatalogRepo implements ports.CatalogRepository. All reads; the pricing
// data is owned by the admin surface, not the engine.
type CatalogRepo struct {
	pool Pool
}

// NewCatalogRepo creates a new CatalogRepo.
func NewCatalogRepo(pool Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// GetPack fetches a top-up pack by id, active or not.
func (r *CatalogRepo) GetPack(ctx context.Context, id uuid.UUID) (*domain.TopupPack, error) {
	query := `SELECT id, name, tokens, is_active, sort_order FROM topup_packs WHERE id = $1`

	p := &domain.TopupPack{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Tokens, &p.IsActive, &p.SortOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get topup pack: %w", err)
	}
	return p, nil
}

// ListActivePacks fetches the purchasable catalog in display order.
func (r *CatalogRepo) ListActivePacks(ctx context.Context) ([]domain.TopupPack, error) {
	query := `SELECT id, name, tokens, is_active, sort_order FROM topup_packs
		WHERE is_active ORDER BY sort_order`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list topup packs: %w", err)
	}
	defer rows.Close()

	var packs []domain.TopupPack
	for rows.Next() {
		var p domain.TopupPack
		if err := rows.Scan(&p.ID, &p.Name, &p.Tokens, &p.IsActive, &p.SortOrder); err != nil {
			return nil, fmt.Errorf("scan topup pack: %w", err)
		}
		packs = append(packs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topup packs: %w", err)
	}
	return packs, nil
}

// GetPrice fetches the token cost for one supported euro amount, or nil when
// the amount is not in the merchant's price table.
func (r *CatalogRepo) GetPrice(ctx context.Context, merchantID uuid.UUID, amountEur decimal.Decimal) (*domain.PricePoint, error) {
	query := `SELECT merchant_id, amount_eur, cost_tokens FROM merchant_pricing
		WHERE merchant_id = $1 AND amount_eur = $2`

	p := &domain.PricePoint{}
	err := r.pool.QueryRow(ctx, query, merchantID, amountEur).Scan(&p.MerchantID, &p.AmountEur, &p.CostTokens)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get merchant price: %w", err)
	}
	return p, nil
}

// GetSettings fetches the singleton settings row, or nil when unset (the
// services fall back to configured defaults).
func (r *CatalogRepo) GetSettings(ctx context.Context) (*domain.Settings, error) {
	query := `SELECT token_eur_rate_estimate, session_ttl_seconds FROM app_settings WHERE id = 1`

	var rate decimal.Decimal
	var ttlSeconds int64
	err := r.pool.QueryRow(ctx, query).Scan(&rate, &ttlSeconds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get app settings: %w", err)
	}
	return &domain.Settings{
		TokenEurRate: rate,
		SessionTTL:   time.Duration(ttlSeconds) * time.Second,
	}, nil
}
