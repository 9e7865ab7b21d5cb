package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TopupPack is a fixed-price token bundle a user can purchase. Static
// catalog data, admin-managed.
type TopupPack struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Tokens    decimal.Decimal `json:"tokens"`
	IsActive  bool            `json:"is_active"`
	SortOrder int             `json:"sort_order"`
}

// PricePoint maps one supported euro amount to its token cost for a merchant.
type PricePoint struct {
	MerchantID uuid.UUID       `json:"merchant_id"`
	AmountEur  decimal.Decimal `json:"amount_eur"`
	CostTokens decimal.Decimal `json:"cost_tokens"`
}

// Settings holds the externally managed operational knobs. They are read at
// the time of each operation, never cached as process-wide state, so tests
// can supply deterministic values.
type Settings struct {
	TokenEurRate decimal.Decimal `json:"token_eur_rate"` // advisory EUR estimate per token
	SessionTTL   time.Duration   `json:"session_ttl"`
}
