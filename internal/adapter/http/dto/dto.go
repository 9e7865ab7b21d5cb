package dto

// CreateSessionRequest is the request body for opening a payment session.
// Amounts travel as decimal strings to avoid float rounding on the wire.
type CreateSessionRequest struct {
	AmountEur string `json:"amount_eur" binding:"required,eur_amount"`
}

// SessionResponse is the response body for payment session reads.
type SessionResponse struct {
	ID           string  `json:"id"`
	MerchantID   string  `json:"merchant_id"`
	AmountTokens string  `json:"amount_tokens"`
	AmountEur    string  `json:"amount_eur"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
	ExpiresAt    string  `json:"expires_at"`
	PaidAt       *string `json:"paid_at,omitempty"`
}

// EntryResponse is the response body for a ledger entry.
type EntryResponse struct {
	ID            string `json:"id"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Amount        string `json:"amount"`
	Kind          string `json:"kind"`
	Reference     string `json:"reference"`
	CreatedAt     string `json:"created_at"`
}

// CreateClearingRequest is the request body for opening a clearing request.
type CreateClearingRequest struct {
	Tokens string `json:"tokens" binding:"required,token_amount"`
}

// ClearingResponse is the response body for clearing request reads.
type ClearingResponse struct {
	ID              string  `json:"id"`
	MerchantID      string  `json:"merchant_id"`
	RequestedTokens string  `json:"requested_tokens"`
	EurEstimate     string  `json:"eur_estimate"`
	Status          string  `json:"status"`
	RequestedBy     string  `json:"requested_by"`
	CreatedAt       string  `json:"created_at"`
	ApprovedAt      *string `json:"approved_at,omitempty"`
	ApprovedBy      *string `json:"approved_by,omitempty"`
	RejectedAt      *string `json:"rejected_at,omitempty"`
	RejectedBy      *string `json:"rejected_by,omitempty"`
	PaidAt          *string `json:"paid_at,omitempty"`
	PaidBy          *string `json:"paid_by,omitempty"`
}

// BuyPackRequest is the request body for purchasing a top-up pack.
type BuyPackRequest struct {
	PackID string `json:"pack_id" binding:"required,uuid"`
}

// AdminCreditRequest is the request body for an admin token grant.
type AdminCreditRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Tokens string `json:"tokens" binding:"required,token_amount"`
}

// PackResponse is the response body for a purchasable pack.
type PackResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Tokens    string `json:"tokens"`
	SortOrder int    `json:"sort_order"`
}

// UserBalanceResponse is the response for a user wallet balance query.
type UserBalanceResponse struct {
	Balance string `json:"balance"`
}

// MerchantBalanceResponse is the two-part merchant position.
type MerchantBalanceResponse struct {
	Available string `json:"available"`
	Pending   string `json:"pending"`
}

// EntryListResponse wraps a paginated entry history.
type EntryListResponse struct {
	Items      []EntryResponse `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// AuditResponse is the result of a stored-vs-derived balance check.
type AuditResponse struct {
	AccountID  string `json:"account_id"`
	Stored     string `json:"stored"`
	Derived    string `json:"derived"`
	Consistent bool   `json:"consistent"`
}
