package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories.go -package=mocks

import (
	"context"
	"time"

	"fairplay-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// Create inserts w unless the owner already has an active wallet in
	// w.Currency. Returns false when nothing was inserted.
	Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	// GetPrimaryByOwner returns the owner's oldest active wallet.
	GetPrimaryByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// UpdateBalance writes balance and version for a wallet locked by tx.
	UpdateBalance(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error
	// UpdateCurrency re-denominates a wallet locked by tx.
	UpdateCurrency(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error
}

// LedgerRepository persists the append-only ledger.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.LedgerEntry, error)
	GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.LedgerEntry, error)
	// Settle moves a PENDING entry to its terminal state, writing the
	// applied amounts. Fails if the entry is no longer pending.
	Settle(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
}

// LedgerListParams holds filter + pagination for listing entries.
type LedgerListParams struct {
	OwnerID  uuid.UUID
	Type     *domain.EntryType
	Page     int
	PageSize int
}

// GameRepository persists settled rounds and their bets.
type GameRepository interface {
	CreateRound(ctx context.Context, tx pgx.Tx, round *domain.Round) error
	GetRound(ctx context.Context, id uuid.UUID) (*domain.Round, error)
}

// SubscriptionRepository persists recurring charges.
type SubscriptionRepository interface {
	ListDueForRenewal(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Subscription, error)
	Update(ctx context.Context, tx pgx.Tx, s *domain.Subscription) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
