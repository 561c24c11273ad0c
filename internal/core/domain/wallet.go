package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletStatus represents whether a wallet accepts balance mutations.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "ACTIVE"
	WalletStatusLocked WalletStatus = "LOCKED"
)

// Wallet is a stored balance in one currency belonging to one owner.
// Balance is in minor units of Currency and only changes through the ledger.
type Wallet struct {
	ID        uuid.UUID    `json:"id"`
	OwnerID   uuid.UUID    `json:"owner_id"`
	Balance   int64        `json:"balance"`
	Currency  string       `json:"currency"`
	Status    WalletStatus `json:"status"`
	Version   int64        `json:"version"` // bumped on every balance write
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// IsActive returns true if the wallet accepts debits and credits.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// NewWallet builds an empty active wallet.
func NewWallet(ownerID uuid.UUID, currency string, now time.Time) *Wallet {
	return &Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Currency:  currency,
		Status:    WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
