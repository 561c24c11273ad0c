package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/internal/metrics"
	"fairplay-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// PostgreSQL error codes that mean "try the whole transaction again".
const (
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgLockNotAvailable     = "55P03"
)

// LedgerServiceImpl implements ports.Ledger.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.LedgerRepository
	transactor ports.DBTransactor
	fx         ports.CurrencyConverter
	metrics    *metrics.Metrics
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	entryRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	fx ports.CurrencyConverter,
	m *metrics.Metrics,
	maxRetries int,
	backoff time.Duration,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		transactor: transactor,
		fx:         fx,
		metrics:    m,
		maxRetries: maxRetries,
		backoff:    backoff,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Debit removes amount from a wallet in its own transaction.
func (s *LedgerServiceImpl) Debit(ctx context.Context, walletID uuid.UUID, amount int64, p ports.EntryParams) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	return s.single(ctx, walletID, -amount, p)
}

// Credit adds amount to a wallet in its own transaction.
func (s *LedgerServiceImpl) Credit(ctx context.Context, walletID uuid.UUID, amount int64, p ports.EntryParams) (*domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	return s.single(ctx, walletID, amount, p)
}

func (s *LedgerServiceImpl) single(ctx context.Context, walletID uuid.UUID, delta int64, p ports.EntryParams) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := s.RunInTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.LockWallets(ctx, tx, walletID)
		if err != nil {
			return err
		}
		entry, err = s.Apply(ctx, tx, locked[walletID], delta, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Transfer debits amount from fromID and credits the converted amount to toID
// in one transaction.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, p ports.EntryParams) (*domain.LedgerEntry, *domain.LedgerEntry, error) {
	if amount <= 0 {
		return nil, nil, apperror.ErrInvalidAmount()
	}
	if fromID == toID {
		return nil, nil, apperror.Validation("cannot transfer to the same wallet")
	}

	var debit, credit *domain.LedgerEntry
	err := s.RunInTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.LockWallets(ctx, tx, fromID, toID)
		if err != nil {
			return err
		}
		from, to := locked[fromID], locked[toID]

		converted, err := s.fx.Convert(amount, from.Currency, to.Currency)
		if err != nil {
			return err
		}

		debit, err = s.Apply(ctx, tx, from, -amount, p)
		if err != nil {
			return err
		}
		credit, err = s.Apply(ctx, tx, to, converted, p)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return debit, credit, nil
}

// RunInTx runs fn inside a transaction. Any error from fn rolls back.
// Deadlocks, serialization failures and lock timeouts are retried with a
// linear backoff; once retries are exhausted they surface as
// TransactionConflict.
func (s *LedgerServiceImpl) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.LedgerConflict()
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("transaction conflict, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff * time.Duration(attempt)):
			}
		}

		err = s.runOnce(ctx, fn)
		if err == nil || !isTxConflict(err) {
			return err
		}
	}
	return apperror.ErrTransactionConflict(err)
}

func (s *LedgerServiceImpl) runOnce(ctx context.Context, fn func(tx pgx.Tx) error) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := fn(dbTx); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func isTxConflict(err error) bool {
	if apperror.HasCode(err, apperror.CodeTxConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgDeadlockDetected, pgSerializationFailure, pgLockNotAvailable:
		return true
	}
	return false
}

// LockWallets takes row locks on the given wallets in ascending id order so
// that concurrent multi-wallet transactions cannot deadlock.
func (s *LedgerServiceImpl) LockWallets(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	ordered := slices.Clone(ids)
	slices.SortFunc(ordered, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	ordered = slices.Compact(ordered)

	locked := make(map[uuid.UUID]*domain.Wallet, len(ordered))
	for _, id := range ordered {
		w, err := s.walletRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock wallet %s: %w", id, err))
		}
		if w == nil {
			return nil, apperror.ErrWalletNotFound()
		}
		locked[id] = w
	}
	return locked, nil
}

// Apply changes a locked wallet's balance by delta and appends a COMPLETED
// entry recording the balance before and after. The wallet is updated in
// place only once both writes succeed.
func (s *LedgerServiceImpl) Apply(ctx context.Context, tx pgx.Tx, w *domain.Wallet, delta int64, p ports.EntryParams) (*domain.LedgerEntry, error) {
	if delta == 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	updated, err := s.applyDelta(w, delta, string(p.Type))
	if err != nil {
		return nil, err
	}
	if err := s.walletRepo.UpdateBalance(ctx, tx, updated); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	now := updated.UpdatedAt
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		WalletID:      w.ID,
		OwnerID:       w.OwnerID,
		Type:          p.Type,
		Amount:        delta,
		BalanceBefore: w.Balance,
		BalanceAfter:  updated.Balance,
		Sequence:      updated.Version,
		Status:        domain.EntryStatusCompleted,
		Description:   p.Description,
		Metadata:      s.withBaseAmount(p.Metadata, delta, w.Currency),
		CreatedAt:     now,
		CompletedAt:   &now,
	}
	if err := s.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	*w = *updated
	s.metrics.LedgerEntry(string(p.Type), "ok")
	return entry, nil
}

// Settle moves a pending entry to a terminal state. A COMPLETED settlement
// credits delta to the locked wallet; other states leave balances untouched
// and w may be nil.
func (s *LedgerServiceImpl) Settle(ctx context.Context, tx pgx.Tx, w *domain.Wallet, e *domain.LedgerEntry, status domain.EntryStatus, delta int64) error {
	if !e.IsPending() {
		return apperror.InternalError(fmt.Errorf("entry %s is %s, not pending", e.ID, e.Status))
	}

	switch status {
	case domain.EntryStatusCompleted:
		if w == nil || w.ID != e.WalletID {
			return apperror.InternalError(fmt.Errorf("entry %s settled against wrong wallet", e.ID))
		}
		if delta <= 0 {
			return apperror.ErrInvalidAmount()
		}
		updated, err := s.applyDelta(w, delta, string(e.Type))
		if err != nil {
			return err
		}
		if err := s.walletRepo.UpdateBalance(ctx, tx, updated); err != nil {
			return apperror.InternalError(fmt.Errorf("update balance: %w", err))
		}

		settled := *e
		now := updated.UpdatedAt
		settled.Amount = delta
		settled.BalanceBefore = w.Balance
		settled.BalanceAfter = updated.Balance
		settled.Sequence = updated.Version
		settled.Status = domain.EntryStatusCompleted
		settled.CompletedAt = &now
		settled.Metadata = s.withBaseAmount(e.Metadata, delta, w.Currency)
		if err := s.entryRepo.Settle(ctx, tx, &settled); err != nil {
			return apperror.InternalError(fmt.Errorf("settle entry: %w", err))
		}

		*w = *updated
		*e = settled

	case domain.EntryStatusFailed, domain.EntryStatusCancelled:
		settled := *e
		now := s.now()
		settled.Status = status
		settled.CompletedAt = &now
		if err := s.entryRepo.Settle(ctx, tx, &settled); err != nil {
			return apperror.InternalError(fmt.Errorf("settle entry: %w", err))
		}
		*e = settled

	default:
		return apperror.InternalError(fmt.Errorf("cannot settle entry to %s", status))
	}

	s.metrics.LedgerEntry(string(e.Type), string(status))
	return nil
}

// Redenominate converts a locked wallet into newCurrency. The entry carries
// amount 0 with the old balance as before and the converted one as after.
func (s *LedgerServiceImpl) Redenominate(ctx context.Context, tx pgx.Tx, w *domain.Wallet, newCurrency string) (*domain.LedgerEntry, error) {
	newCurrency = strings.ToUpper(newCurrency)
	if !w.IsActive() {
		return nil, apperror.ErrWalletLocked()
	}
	if !s.fx.Supported(newCurrency) {
		return nil, apperror.ErrUnsupportedCurrency(newCurrency)
	}
	if w.Currency == newCurrency {
		return nil, apperror.Validation("wallet already uses " + newCurrency)
	}

	converted, err := s.fx.Convert(w.Balance, w.Currency, newCurrency)
	if err != nil {
		return nil, err
	}
	rate, err := s.fx.Rate(w.Currency, newCurrency)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated := *w
	updated.Currency = newCurrency
	updated.Balance = converted
	updated.Version++
	updated.UpdatedAt = now
	if err := s.walletRepo.UpdateCurrency(ctx, tx, &updated); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update currency: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		WalletID:      w.ID,
		OwnerID:       w.OwnerID,
		Type:          domain.EntryTypeCurrencyChange,
		BalanceBefore: w.Balance,
		BalanceAfter:  converted,
		Sequence:      updated.Version,
		Status:        domain.EntryStatusCompleted,
		Description:   fmt.Sprintf("Currency change %s to %s", w.Currency, newCurrency),
		Metadata: map[string]any{
			"from_currency":  w.Currency,
			"to_currency":    newCurrency,
			"rate":           rate.String(),
			"balance_before": w.Balance,
			"balance_after":  converted,
		},
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := s.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	*w = updated
	s.metrics.LedgerEntry(string(domain.EntryTypeCurrencyChange), "ok")
	return entry, nil
}

// applyDelta returns a copy of w with delta applied and the version bumped.
// w itself is never modified.
func (s *LedgerServiceImpl) applyDelta(w *domain.Wallet, delta int64, entryType string) (*domain.Wallet, error) {
	if !w.IsActive() {
		s.metrics.LedgerEntry(entryType, "wallet_locked")
		return nil, apperror.ErrWalletLocked()
	}

	next := w.Balance + delta
	if (delta > 0 && next < w.Balance) || (delta < 0 && next > w.Balance) {
		return nil, apperror.ErrInvalidAmount()
	}
	if next < 0 {
		s.metrics.LedgerEntry(entryType, "insufficient_funds")
		return nil, apperror.ErrInsufficientFunds()
	}

	updated := *w
	updated.Balance = next
	updated.Version++
	updated.UpdatedAt = s.now()
	return &updated, nil
}

// withBaseAmount copies meta and adds the delta expressed in the base
// currency for cross-currency reporting.
func (s *LedgerServiceImpl) withBaseAmount(meta map[string]any, delta int64, currency string) map[string]any {
	out := make(map[string]any, len(meta)+1)
	maps.Copy(out, meta)

	base, err := s.fx.Convert(delta, currency, s.fx.Base())
	if err != nil {
		s.log.Warn().Err(err).Str("currency", currency).Msg("cannot express entry in base currency")
		return out
	}
	out["base_amount"] = base
	return out
}
