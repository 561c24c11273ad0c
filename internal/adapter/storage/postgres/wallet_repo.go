package postgres

import (
	"context"
	"errors"
	"fmt"

	"fairplay-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, owner_id, balance, currency, status, version, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a wallet unless the owner already holds one in the same
// currency. Reports whether a row was inserted.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (bool, error) {
	query := `INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id, currency) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		w.ID, w.OwnerID, w.Balance, w.Currency, w.Status,
		w.Version, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID fetches a wallet by its UUID (without locking).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, id), "get wallet by id")
}

// GetPrimaryByOwner fetches the owner's oldest active wallet.
func (r *WalletRepo) GetPrimaryByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets
		WHERE owner_id = $1 AND status = 'ACTIVE'
		ORDER BY created_at, id LIMIT 1`
	return scanWallet(r.pool.QueryRow(ctx, query, ownerID), "get primary wallet")
}

// GetByOwnerAndCurrency fetches a wallet by owner and currency (non-locking read).
func (r *WalletRepo) GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 AND currency = $2`
	return scanWallet(r.pool.QueryRow(ctx, query, ownerID, currency), "get wallet by owner")
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, id), "get wallet for update")
}

// UpdateBalance writes the balance and version of a locked wallet.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets SET balance = $1, version = $2, updated_at = $3 WHERE id = $4`

	tag, err := tx.Exec(ctx, query, w.Balance, w.Version, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

// UpdateCurrency re-denominates a locked wallet.
func (r *WalletRepo) UpdateCurrency(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets SET currency = $1, balance = $2, version = $3, updated_at = $4 WHERE id = $5`

	tag, err := tx.Exec(ctx, query, w.Currency, w.Balance, w.Version, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update wallet currency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Balance, &w.Currency, &w.Status,
		&w.Version, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
