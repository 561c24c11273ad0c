package ports

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

import (
	"context"
	"time"

	"fairplay-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EncryptionService seals secrets at rest (committed server seeds).
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(ownerID uuid.UUID, ttl time.Duration) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	OwnerID uuid.UUID
}

// CurrencyConverter converts minor-unit amounts between supported currencies.
type CurrencyConverter interface {
	Convert(amount int64, from, to string) (int64, error)
	Rate(from, to string) (decimal.Decimal, error)
	// ExactUnit is the smallest amount of from that converts without rounding.
	ExactUnit(from, to string) (int64, error)
	Supported(code string) bool
	Base() string
}

// CallbackCache remembers terminal deposit states for the callback fast path.
type CallbackCache interface {
	Get(ctx context.Context, orderID string) (domain.EntryStatus, error) // "" if absent
	Set(ctx context.Context, orderID string, status domain.EntryStatus, ttl time.Duration) error
}

// SeedStore holds seed commitments between publication and play.
type SeedStore interface {
	NextNonce(ctx context.Context, walletID uuid.UUID) (int64, error)
	Put(ctx context.Context, walletID uuid.UUID, c domain.SeedCommitment, ttl time.Duration) error
	// Take atomically removes and returns the commitment, nil if none.
	Take(ctx context.Context, walletID uuid.UUID) (*domain.SeedCommitment, error)
}

// --- Ledger ---

// EntryParams describes the ledger entry recorded alongside a balance change.
type EntryParams struct {
	Type        domain.EntryType
	Description string
	Metadata    map[string]any
}

// Ledger is the sole authority on wallet balances.
type Ledger interface {
	Debit(ctx context.Context, walletID uuid.UUID, amount int64, p EntryParams) (*domain.LedgerEntry, error)
	Credit(ctx context.Context, walletID uuid.UUID, amount int64, p EntryParams) (*domain.LedgerEntry, error)
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, p EntryParams) (*domain.LedgerEntry, *domain.LedgerEntry, error)

	// RunInTx runs fn in one transaction; fn returning an error aborts it.
	RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	// LockWallets locks the wallets in ascending id order.
	LockWallets(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error)
	// Apply changes a locked wallet's balance by delta and appends the entry.
	Apply(ctx context.Context, tx pgx.Tx, w *domain.Wallet, delta int64, p EntryParams) (*domain.LedgerEntry, error)
	// Settle applies a pending entry to its locked wallet. delta is ignored
	// unless status is COMPLETED.
	Settle(ctx context.Context, tx pgx.Tx, w *domain.Wallet, e *domain.LedgerEntry, status domain.EntryStatus, delta int64) error
	// Redenominate converts a locked wallet's balance into newCurrency and
	// appends a CURRENCY_CHANGE entry.
	Redenominate(ctx context.Context, tx pgx.Tx, w *domain.Wallet, newCurrency string) (*domain.LedgerEntry, error)
}

// --- Payment gateways ---

// PaymentURLRequest is the provider-neutral input for a payment page.
type PaymentURLRequest struct {
	OrderID   string
	Amount    int64 // gateway currency minor units
	OrderInfo string
	ClientIP  string
	Locale    string
}

// CallbackResult is a provider callback normalized after signature checks.
type CallbackResult struct {
	Success       bool
	OrderID       string
	Amount        int64
	ProviderTxnID string
	Code          string
	Message       string
}

// PaymentGateway is implemented once per external provider.
type PaymentGateway interface {
	Name() string
	Currency() string
	CreatePaymentURL(ctx context.Context, req PaymentURLRequest) (string, error)
	VerifySignature(payload map[string]string) bool
	ProcessCallback(payload map[string]string) CallbackResult
	// Acknowledge renders ack in the provider's expected response shape.
	Acknowledge(ack domain.CallbackAck) (int, any)
}

// GatewayRegistry selects a gateway by payment method name.
type GatewayRegistry interface {
	Get(method string) (PaymentGateway, bool)
	Methods() []string
}

// --- Service Ports (Business Logic) ---

// WalletService is the wallet API consumed by other subsystems.
type WalletService interface {
	GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID, defaultCurrency string) (*domain.Wallet, error)
	GetBalance(ctx context.Context, ownerID uuid.UUID, displayCurrency string) (*BalanceView, error)
	ListTransactions(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	ChangeCurrency(ctx context.Context, ownerID uuid.UUID, newCurrency string) (*domain.Wallet, *domain.LedgerEntry, error)
}

// BalanceView is a wallet balance optionally re-expressed in another currency.
type BalanceView struct {
	WalletID        uuid.UUID
	Balance         int64
	Currency        string
	DisplayBalance  int64
	DisplayCurrency string
}

// DepositService orchestrates gateway deposits.
type DepositService interface {
	InitiateDeposit(ctx context.Context, req DepositRequest) (*DepositInitiation, error)
	HandleCallback(ctx context.Context, method string, source domain.CallbackSource, payload map[string]string) (*CallbackOutcome, error)
}

// DepositRequest holds validated input for deposit initiation.
type DepositRequest struct {
	OwnerID  uuid.UUID
	Amount   int64
	Currency string
	Method   string
	ClientIP string
}

// DepositInitiation is returned once the pending entry exists.
type DepositInitiation struct {
	TransactionID uuid.UUID
	OrderID       string
	PaymentURL    string
}

// CallbackOutcome reports what a callback did. Ack drives the provider response.
type CallbackOutcome struct {
	Ack     domain.CallbackAck
	OrderID string
	Status  domain.EntryStatus
	Message string
}

// GameService settles provably-fair bets.
type GameService interface {
	CommitSeed(ctx context.Context, playerWalletID uuid.UUID) (*SeedView, error)
	PlaceBet(ctx context.Context, req PlaceBetRequest) (*BetResult, error)
	VerifyRound(ctx context.Context, roundID uuid.UUID) (*RoundVerification, error)
}

// SeedView is the public side of a seed commitment.
type SeedView struct {
	ServerSeedHash string
	Nonce          int64
}

// PlaceBetRequest holds validated input for one round. A zero
// HouseWalletID selects the configured house wallet.
type PlaceBetRequest struct {
	PlayerWalletID uuid.UUID
	HouseWalletID  uuid.UUID
	Game           domain.Game
	Stakes         []domain.Stake
	ClientSeed     string
}

// BetResult is the settled round as returned to the player.
type BetResult struct {
	RoundID    uuid.UUID
	Game       domain.Game
	Outcome    []int
	Bets       []domain.Bet
	TotalStake int64
	TotalWin   int64
	NewBalance int64
	Currency   string
	Fairness   FairnessProof
}

// FairnessProof lets a player recompute the outcome.
type FairnessProof struct {
	ServerSeedHash string
	ServerSeed     string
	ClientSeed     string
	Nonce          int64
}

// RoundVerification is a stored round with its recomputed outcome.
type RoundVerification struct {
	Round    *domain.Round
	Verified bool
}
