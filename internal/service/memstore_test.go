package service

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory stand-in for PostgreSQL with row locks held until
// commit or rollback and writes staged per transaction.
type memStore struct {
	mu       sync.Mutex
	wallets  map[uuid.UUID]domain.Wallet
	entries  map[uuid.UUID]domain.LedgerEntry
	rounds   map[uuid.UUID]domain.Round
	subs     map[uuid.UUID]domain.Subscription
	rowLocks map[string]*sync.Mutex

	// commitErrs are returned by successive commits before any write applies.
	commitErrs []error
	commits    int
}

func newMemStore() *memStore {
	return &memStore{
		wallets:  make(map[uuid.UUID]domain.Wallet),
		entries:  make(map[uuid.UUID]domain.LedgerEntry),
		rounds:   make(map[uuid.UUID]domain.Round),
		subs:     make(map[uuid.UUID]domain.Subscription),
		rowLocks: make(map[string]*sync.Mutex),
	}
}

func (s *memStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{store: s, held: make(map[string]bool), wallets: make(map[uuid.UUID]domain.Wallet)}, nil
}

func (s *memStore) rowLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[key] = l
	}
	return l
}

func (s *memStore) addWallet(t *testing.T, ownerID uuid.UUID, currency string, balance int64) domain.Wallet {
	t.Helper()
	w := domain.NewWallet(ownerID, currency, time.Now().UTC())
	w.Balance = balance
	s.mu.Lock()
	s.wallets[w.ID] = *w
	s.mu.Unlock()
	return *w
}

func (s *memStore) wallet(id uuid.UUID) domain.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[id]
}

func (s *memStore) setWalletStatus(id uuid.UUID, status domain.WalletStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallets[id]
	w.Status = status
	s.wallets[id] = w
}

// walletEntries returns the wallet's entries ordered by sequence, pending
// entries last.
func (s *memStore) walletEntries(id uuid.UUID) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.WalletID == id {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence == 0 || out[j].Sequence == 0 {
			return out[j].Sequence == 0 && out[i].Sequence != 0
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

func (s *memStore) entryByOrder(orderID string) (domain.LedgerEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.GatewayOrderID != nil && *e.GatewayOrderID == orderID {
			return e, true
		}
	}
	return domain.LedgerEntry{}, false
}

// requireChain checks that completed entries of a wallet link
// before(n) = after(n-1), balance each other and end at the wallet balance.
func (s *memStore) requireChain(t *testing.T, walletID uuid.UUID) {
	t.Helper()
	var prev *domain.LedgerEntry
	for _, e := range s.walletEntries(walletID) {
		if e.Status != domain.EntryStatusCompleted {
			continue
		}
		require.Truef(t, e.Balanced(), "entry %s unbalanced: %+v", e.ID, e)
		if prev != nil {
			require.Equal(t, prev.BalanceAfter, e.BalanceBefore, "chain broken at sequence %d", e.Sequence)
			require.Equal(t, prev.Sequence+1, e.Sequence)
		}
		prev = &e
	}
	if prev != nil {
		require.Equal(t, prev.BalanceAfter, s.wallet(walletID).Balance)
	}
}

// memTx embeds pgx.Tx to satisfy the interface; only Commit and Rollback
// are ever called by the code under test.
type memTx struct {
	pgx.Tx
	store *memStore
	held  map[string]bool
	locks []*sync.Mutex
	done  bool

	wallets    map[uuid.UUID]domain.Wallet
	newWallets []domain.Wallet
	entries    []domain.LedgerEntry
	rounds     []domain.Round
	subs       []domain.Subscription
}

func txOf(tx pgx.Tx) *memTx {
	if tx == nil {
		return nil
	}
	return tx.(*memTx)
}

func (t *memTx) lock(key string) {
	if t.held[key] {
		return
	}
	l := t.store.rowLock(key)
	l.Lock()
	t.held[key] = true
	t.locks = append(t.locks, l)
}

func (t *memTx) release() {
	for _, l := range t.locks {
		l.Unlock()
	}
	t.locks = nil
	t.held = map[string]bool{}
	t.done = true
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	defer t.release()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commits++
	if len(s.commitErrs) > 0 {
		err := s.commitErrs[0]
		s.commitErrs = s.commitErrs[1:]
		if err != nil {
			return err
		}
	}

	for _, w := range t.newWallets {
		if activeWalletExists(s.wallets, w.OwnerID, w.Currency) {
			continue
		}
		s.wallets[w.ID] = w
	}
	for id, w := range t.wallets {
		s.wallets[id] = w
	}
	for _, e := range t.entries {
		s.entries[e.ID] = e
	}
	for _, r := range t.rounds {
		s.rounds[r.ID] = r
	}
	for _, sub := range t.subs {
		s.subs[sub.ID] = sub
	}
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func activeWalletExists(wallets map[uuid.UUID]domain.Wallet, ownerID uuid.UUID, currency string) bool {
	for _, w := range wallets {
		if w.OwnerID == ownerID && w.Currency == currency && w.IsActive() {
			return true
		}
	}
	return false
}

// --- ports.WalletRepository ---

type memWalletRepo struct{ s *memStore }

func (r memWalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) (bool, error) {
	t := txOf(tx)
	r.s.mu.Lock()
	exists := activeWalletExists(r.s.wallets, w.OwnerID, w.Currency)
	r.s.mu.Unlock()
	if exists {
		return false, nil
	}
	t.newWallets = append(t.newWallets, *w)
	return true, nil
}

func (r memWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r memWalletRepo) GetPrimaryByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *domain.Wallet
	for _, w := range r.s.wallets {
		if w.OwnerID != ownerID || !w.IsActive() {
			continue
		}
		if best == nil || w.CreatedAt.Before(best.CreatedAt) {
			best = &w
		}
	}
	return best, nil
}

func (r memWalletRepo) GetByOwnerAndCurrency(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.wallets {
		if w.OwnerID == ownerID && w.Currency == currency && w.IsActive() {
			return &w, nil
		}
	}
	return nil, nil
}

func (r memWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	t := txOf(tx)
	t.lock("wallet:" + id.String())
	if w, ok := t.wallets[id]; ok {
		return &w, nil
	}
	return r.GetByID(ctx, id)
}

func (r memWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	t := txOf(tx)
	if !t.held["wallet:"+w.ID.String()] {
		return fmt.Errorf("wallet %s updated without lock", w.ID)
	}
	t.wallets[w.ID] = *w
	return nil
}

func (r memWalletRepo) UpdateCurrency(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	return r.UpdateBalance(ctx, tx, w)
}

// --- ports.LedgerRepository ---

type memLedgerRepo struct{ s *memStore }

func (r memLedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	t := txOf(tx)
	if e.GatewayOrderID != nil {
		if _, ok := r.s.entryByOrder(*e.GatewayOrderID); ok {
			return fmt.Errorf("duplicate gateway order id %s", *e.GatewayOrderID)
		}
	}
	t.entries = append(t.entries, *e)
	return nil
}

func (r memLedgerRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.LedgerEntry, error) {
	e, ok := r.s.entryByOrder(orderID)
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r memLedgerRepo) GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.LedgerEntry, error) {
	txOf(tx).lock("entry:" + orderID)
	return r.GetByOrderID(ctx, orderID)
}

func (r memLedgerRepo) Settle(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	t := txOf(tx)
	r.s.mu.Lock()
	cur, ok := r.s.entries[e.ID]
	r.s.mu.Unlock()
	if !ok || cur.Status != domain.EntryStatusPending {
		return fmt.Errorf("entry %s is not pending", e.ID)
	}
	t.entries = append(t.entries, *e)
	return nil
}

func (r memLedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.s.mu.Lock()
	var all []domain.LedgerEntry
	for _, e := range r.s.entries {
		if e.OwnerID != params.OwnerID {
			continue
		}
		if params.Type != nil && e.Type != *params.Type {
			continue
		}
		all = append(all, e)
	}
	r.s.mu.Unlock()

	slices.SortFunc(all, func(a, b domain.LedgerEntry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})

	total := int64(len(all))
	start := (params.Page - 1) * params.PageSize
	if start >= len(all) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := min(start+params.PageSize, len(all))
	return all[start:end], total, nil
}

// --- ports.GameRepository ---

type memGameRepo struct{ s *memStore }

func (r memGameRepo) CreateRound(ctx context.Context, tx pgx.Tx, round *domain.Round) error {
	t := txOf(tx)
	t.rounds = append(t.rounds, *round)
	return nil
}

func (r memGameRepo) GetRound(ctx context.Context, id uuid.UUID) (*domain.Round, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	round, ok := r.s.rounds[id]
	if !ok {
		return nil, nil
	}
	return &round, nil
}

// --- ports.SubscriptionRepository ---

type memSubscriptionRepo struct{ s *memStore }

func (r memSubscriptionRepo) ListDueForRenewal(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Subscription
	for _, sub := range r.s.subs {
		if sub.DueForRenewal(now) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodEnd.Before(out[j].PeriodEnd) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memSubscriptionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Subscription, error) {
	txOf(tx).lock("sub:" + id.String())
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subs[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (r memSubscriptionRepo) Update(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	t := txOf(tx)
	t.subs = append(t.subs, *sub)
	return nil
}

// newMemLedger wires a LedgerServiceImpl to s with the default rate table.
func newMemLedger(t *testing.T, s *memStore) (*LedgerServiceImpl, *CurrencyServiceImpl) {
	t.Helper()
	fx := newTestCurrencyService(t)
	ledger := NewLedgerService(
		memWalletRepo{s}, memLedgerRepo{s}, s, fx, nil,
		3, time.Millisecond, zerolog.Nop(),
	)
	return ledger, fx
}
