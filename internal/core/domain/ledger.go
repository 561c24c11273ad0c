package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntryType is the closed set of ledger entry categories.
type EntryType string

const (
	EntryTypeDeposit        EntryType = "DEPOSIT"
	EntryTypeWithdraw       EntryType = "WITHDRAW"
	EntryTypePurchase       EntryType = "PURCHASE"
	EntryTypeSubscription   EntryType = "SUBSCRIPTION"
	EntryTypeBet            EntryType = "BET"
	EntryTypeWin            EntryType = "WIN"
	EntryTypeCurrencyChange EntryType = "CURRENCY_CHANGE"
)

var entryTypes = []EntryType{
	EntryTypeDeposit, EntryTypeWithdraw, EntryTypePurchase, EntryTypeSubscription,
	EntryTypeBet, EntryTypeWin, EntryTypeCurrencyChange,
}

// ParseEntryType validates s against the known entry types (case-insensitive).
func ParseEntryType(s string) (EntryType, error) {
	for _, t := range entryTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entry type %q", s)
}

// EntryStatus is the lifecycle state of a ledger entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusFailed    EntryStatus = "FAILED"
	EntryStatusCancelled EntryStatus = "CANCELLED"
)

// LedgerEntry is an append-only record of one balance change.
// Amount is signed, in the wallet's currency. Sequence is the wallet version
// the entry produced; zero until the entry is applied.
type LedgerEntry struct {
	ID             uuid.UUID      `json:"id"`
	WalletID       uuid.UUID      `json:"wallet_id"`
	OwnerID        uuid.UUID      `json:"owner_id"`
	Type           EntryType      `json:"type"`
	Amount         int64          `json:"amount"`
	BalanceBefore  int64          `json:"balance_before"`
	BalanceAfter   int64          `json:"balance_after"`
	Sequence       int64          `json:"sequence"`
	Status         EntryStatus    `json:"status"`
	Gateway        *string        `json:"gateway,omitempty"`
	GatewayOrderID *string        `json:"gateway_order_id,omitempty"`
	ProviderTxnID  *string        `json:"provider_txn_id,omitempty"`
	Description    string         `json:"description"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// IsPending returns true while the entry awaits a terminal state.
func (e *LedgerEntry) IsPending() bool {
	return e.Status == EntryStatusPending
}

// IsTerminal returns true if the entry is in a final state.
func (e *LedgerEntry) IsTerminal() bool {
	return e.Status == EntryStatusCompleted ||
		e.Status == EntryStatusFailed ||
		e.Status == EntryStatusCancelled
}

// Balanced reports whether before + amount = after. Currency changes
// re-denominate the balance and are exempt.
func (e *LedgerEntry) Balanced() bool {
	if e.Type == EntryTypeCurrencyChange {
		return e.Amount == 0
	}
	return e.BalanceBefore+e.Amount == e.BalanceAfter
}
