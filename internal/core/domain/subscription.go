package domain

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
)

// Subscription is a recurring charge against a wallet. Price is stored in
// the base currency and converted at debit time.
type Subscription struct {
	ID          uuid.UUID          `json:"id"`
	OwnerID     uuid.UUID          `json:"owner_id"`
	WalletID    uuid.UUID          `json:"wallet_id"`
	PlanCode    string             `json:"plan_code"`
	Price       int64              `json:"price"`
	PeriodDays  int                `json:"period_days"`
	PeriodStart time.Time          `json:"period_start"`
	PeriodEnd   time.Time          `json:"period_end"`
	AutoRenew   bool               `json:"auto_renew"`
	Status      SubscriptionStatus `json:"status"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// DueForRenewal reports whether the subscription should be charged at now.
func (s *Subscription) DueForRenewal(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.AutoRenew && !s.PeriodEnd.After(now)
}

// Period returns the length of one billing period.
func (s *Subscription) Period() time.Duration {
	return time.Duration(s.PeriodDays) * 24 * time.Hour
}

// Advance moves the window forward one period. A subscription more than a
// full period behind restarts at now instead of back-filling missed periods.
func (s *Subscription) Advance(now time.Time) {
	start := s.PeriodEnd
	if now.Sub(start) >= s.Period() {
		start = now
	}
	s.PeriodStart = start
	s.PeriodEnd = start.Add(s.Period())
	s.UpdatedAt = now
}

// Expire disables auto-renew and marks the subscription expired.
func (s *Subscription) Expire(now time.Time) {
	s.AutoRenew = false
	s.Status = SubscriptionStatusExpired
	s.UpdatedAt = now
}
