package dto

import "fairplay-wallet/internal/core/domain"

// CreateDepositRequest is the request body for starting a gateway deposit.
type CreateDepositRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Currency      string `json:"currency" binding:"required,currency_code"`
	PaymentMethod string `json:"payment_method" binding:"required,max=32,safe_id"`
}

// DepositResponse is returned once the pending deposit exists.
type DepositResponse struct {
	TransactionID string `json:"transaction_id"`
	OrderID       string `json:"order_id"`
	PaymentURL    string `json:"payment_url"`
}

// CallbackResponse reports a browser-return callback to the player.
type CallbackResponse struct {
	OrderID string `json:"order_id"`
	Result  string `json:"result"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// ChangeCurrencyRequest is the request body for redenominating a wallet.
type ChangeCurrencyRequest struct {
	Currency string `json:"currency" binding:"required,currency_code"`
}

// WalletResponse is the public view of a wallet.
type WalletResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Balance   int64  `json:"balance"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	WalletID        string `json:"wallet_id"`
	Balance         int64  `json:"balance"`
	Currency        string `json:"currency"`
	DisplayBalance  int64  `json:"display_balance"`
	DisplayCurrency string `json:"display_currency"`
}

// CurrencyChangeResponse carries the redenominated wallet and its audit entry.
type CurrencyChangeResponse struct {
	Wallet WalletResponse       `json:"wallet"`
	Entry  *LedgerEntryResponse `json:"entry,omitempty"`
}

// LedgerEntryResponse is one line of the wallet history.
type LedgerEntryResponse struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Amount         int64          `json:"amount"`
	BalanceBefore  int64          `json:"balance_before"`
	BalanceAfter   int64          `json:"balance_after"`
	Status         string         `json:"status"`
	Gateway        *string        `json:"gateway,omitempty"`
	GatewayOrderID *string        `json:"gateway_order_id,omitempty"`
	Description    string         `json:"description"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      string         `json:"created_at"`
	CompletedAt    *string        `json:"completed_at,omitempty"`
}

// TransactionListResponse wraps a paginated ledger history.
type TransactionListResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// StakeRequest is one wager inside a bet request.
type StakeRequest struct {
	Kind   string `json:"kind" binding:"required,max=16"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// PlaceBetRequest accepts either a list of stakes or the single-stake
// shorthand {bet_type, amount}.
type PlaceBetRequest struct {
	Stakes     []StakeRequest `json:"stakes" binding:"omitempty,max=16,dive"`
	BetType    string         `json:"bet_type" binding:"omitempty,max=16"`
	Amount     int64          `json:"amount" binding:"omitempty,gt=0"`
	ClientSeed string         `json:"client_seed" binding:"omitempty,max=64,safe_id"`
}

// SeedResponse publishes a committed server seed hash.
type SeedResponse struct {
	ServerSeedHash string `json:"server_seed_hash"`
	Nonce          int64  `json:"nonce"`
}

// FairnessResponse lets a player recompute a round.
type FairnessResponse struct {
	ServerSeedHash string `json:"server_seed_hash"`
	ServerSeed     string `json:"server_seed"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int64  `json:"nonce"`
}

// BetResponse is a settled round.
type BetResponse struct {
	RoundID    string           `json:"round_id"`
	Game       string           `json:"game"`
	Outcome    []int            `json:"outcome"`
	Bets       []domain.Bet     `json:"bets"`
	TotalStake int64            `json:"total_stake"`
	TotalWin   int64            `json:"total_win"`
	NewBalance int64            `json:"new_balance"`
	Currency   string           `json:"currency"`
	Fairness   FairnessResponse `json:"fairness"`
}

// RoundResponse is a stored round with its verification result.
type RoundResponse struct {
	Round    *domain.Round `json:"round"`
	Verified bool          `json:"verified"`
}
