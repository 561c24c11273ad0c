package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var renewalNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRenewalWorker(t *testing.T, store *memStore, interval time.Duration) *RenewalWorker {
	t.Helper()
	ledger, fx := newMemLedger(t, store)
	w := NewRenewalWorker(memSubscriptionRepo{store}, ledger, fx, interval, 10, nil, zerolog.Nop())
	w.now = func() time.Time { return renewalNow }
	return w
}

func addSubscription(store *memStore, wallet domain.Wallet, price int64, periodEnd time.Time) domain.Subscription {
	sub := domain.Subscription{
		ID:          uuid.New(),
		OwnerID:     wallet.OwnerID,
		WalletID:    wallet.ID,
		PlanCode:    "premium-monthly",
		Price:       price,
		PeriodDays:  30,
		PeriodStart: periodEnd.Add(-30 * 24 * time.Hour),
		PeriodEnd:   periodEnd,
		AutoRenew:   true,
		Status:      domain.SubscriptionStatusActive,
	}
	store.mu.Lock()
	store.subs[sub.ID] = sub
	store.mu.Unlock()
	return sub
}

func (s *memStore) subscription(id uuid.UUID) domain.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id]
}

func TestRenewalWorker_RenewsDueSubscription(t *testing.T) {
	store := newMemStore()
	w := newTestRenewalWorker(t, store, time.Minute)
	wallet := store.addWallet(t, uuid.New(), "VND", 1_000_000)
	periodEnd := renewalNow.Add(-time.Hour)
	sub := addSubscription(store, wallet, 999, periodEnd)

	stats, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RenewalStats{Renewed: 1}, stats)

	// 9.99 USD at 25000 VND per USD.
	assert.Equal(t, int64(1_000_000-249_750), store.wallet(wallet.ID).Balance)

	got := store.subscription(sub.ID)
	assert.Equal(t, periodEnd, got.PeriodStart)
	assert.Equal(t, periodEnd.Add(30*24*time.Hour), got.PeriodEnd)
	assert.True(t, got.AutoRenew)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)

	entries := store.walletEntries(wallet.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EntryTypeSubscription, entries[0].Type)
	assert.Equal(t, int64(-249_750), entries[0].Amount)
	assert.Equal(t, sub.ID.String(), entries[0].Metadata["subscription_id"])
	store.requireChain(t, wallet.ID)

	stats, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RenewalStats{}, stats)
}

func TestRenewalWorker_InsufficientFundsExpires(t *testing.T) {
	store := newMemStore()
	w := newTestRenewalWorker(t, store, time.Minute)
	wallet := store.addWallet(t, uuid.New(), "USD", 500)
	sub := addSubscription(store, wallet, 999, renewalNow.Add(-time.Minute))

	stats, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RenewalStats{Expired: 1}, stats)

	got := store.subscription(sub.ID)
	assert.False(t, got.AutoRenew)
	assert.Equal(t, domain.SubscriptionStatusExpired, got.Status)
	assert.Equal(t, int64(500), store.wallet(wallet.ID).Balance)
	assert.Empty(t, store.walletEntries(wallet.ID))
}

func TestRenewalWorker_FarBehindRestartsAtNow(t *testing.T) {
	store := newMemStore()
	w := newTestRenewalWorker(t, store, time.Minute)
	wallet := store.addWallet(t, uuid.New(), "USD", 10_000)
	sub := addSubscription(store, wallet, 999, renewalNow.Add(-45*24*time.Hour))

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	got := store.subscription(sub.ID)
	assert.Equal(t, renewalNow, got.PeriodStart)
	assert.Equal(t, renewalNow.Add(30*24*time.Hour), got.PeriodEnd)
	assert.Equal(t, int64(10_000-999), store.wallet(wallet.ID).Balance)
}

func TestRenewalWorker_LockedWalletRetriedNextPass(t *testing.T) {
	store := newMemStore()
	w := newTestRenewalWorker(t, store, time.Minute)
	wallet := store.addWallet(t, uuid.New(), "USD", 10_000)
	sub := addSubscription(store, wallet, 999, renewalNow.Add(-time.Minute))
	store.setWalletStatus(wallet.ID, domain.WalletStatusLocked)

	stats, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RenewalStats{Failed: 1}, stats)
	assert.Equal(t, sub.PeriodEnd, store.subscription(sub.ID).PeriodEnd)
	assert.Equal(t, domain.SubscriptionStatusActive, store.subscription(sub.ID).Status)

	store.setWalletStatus(wallet.ID, domain.WalletStatusActive)
	stats, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RenewalStats{Renewed: 1}, stats)
	assert.Equal(t, int64(10_000-999), store.wallet(wallet.ID).Balance)
}

func TestRenewalWorker_ConcurrentPassesChargeOnce(t *testing.T) {
	store := newMemStore()
	wallet := store.addWallet(t, uuid.New(), "USD", 100_000)
	for range 5 {
		addSubscription(store, wallet, 1_000, renewalNow.Add(-time.Hour))
	}

	var wg sync.WaitGroup
	results := make([]RenewalStats, 4)
	for i := range results {
		w := newTestRenewalWorker(t, store, time.Minute)
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := w.RunOnce(context.Background())
			assert.NoError(t, err)
			results[i] = stats
		}()
	}
	wg.Wait()

	renewed := 0
	for _, r := range results {
		renewed += r.Renewed
		assert.Zero(t, r.Failed)
	}
	assert.Equal(t, 5, renewed)
	assert.Equal(t, int64(100_000-5*1_000), store.wallet(wallet.ID).Balance)
	store.requireChain(t, wallet.ID)
}

func TestRenewalWorker_ListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	subs := mocks.NewMockSubscriptionRepository(ctrl)
	subs.EXPECT().ListDueForRenewal(gomock.Any(), gomock.Any(), 10).Return(nil, errors.New("db down"))

	w := NewRenewalWorker(subs, nil, nil, time.Minute, 10, nil, zerolog.Nop())
	_, err := w.RunOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestRenewalWorker_StartStopsWithContext(t *testing.T) {
	store := newMemStore()
	w := newTestRenewalWorker(t, store, 5*time.Millisecond)
	wallet := store.addWallet(t, uuid.New(), "USD", 10_000)
	sub := addSubscription(store, wallet, 999, renewalNow.Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return store.subscription(sub.ID).PeriodEnd.After(renewalNow)
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, int64(10_000-999), store.wallet(wallet.ID).Balance)
}
