package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.LedgerRepository
	ledger     ports.Ledger
	fx         ports.CurrencyConverter
	log        zerolog.Logger
	now        func() time.Time
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	entryRepo ports.LedgerRepository,
	ledger ports.Ledger,
	fx ports.CurrencyConverter,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		ledger:     ledger,
		fx:         fx,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateWallet returns the owner's primary wallet, creating an empty
// one in defaultCurrency (or the base currency) on first access.
func (s *WalletServiceImpl) GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID, defaultCurrency string) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetPrimaryByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if w != nil {
		return w, nil
	}

	currency := strings.ToUpper(defaultCurrency)
	if currency == "" {
		currency = s.fx.Base()
	}
	if !s.fx.Supported(currency) {
		return nil, apperror.ErrUnsupportedCurrency(currency)
	}

	var created bool
	err = s.ledger.RunInTx(ctx, func(tx pgx.Tx) error {
		ok, err := s.walletRepo.Create(ctx, tx, domain.NewWallet(ownerID, currency, s.now()))
		if err != nil {
			return apperror.InternalError(fmt.Errorf("create wallet: %w", err))
		}
		created = ok
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A concurrent first access may have won the insert; read whichever row exists.
	w, err = s.walletRepo.GetPrimaryByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	if created {
		s.log.Info().
			Str("owner_id", ownerID.String()).
			Str("wallet_id", w.ID.String()).
			Str("currency", w.Currency).
			Msg("wallet created")
	}
	return w, nil
}

// GetBalance returns the owner's balance, also expressed in displayCurrency
// when one is given.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, ownerID uuid.UUID, displayCurrency string) (*ports.BalanceView, error) {
	w, err := s.GetOrCreateWallet(ctx, ownerID, "")
	if err != nil {
		return nil, err
	}

	view := &ports.BalanceView{
		WalletID:        w.ID,
		Balance:         w.Balance,
		Currency:        w.Currency,
		DisplayBalance:  w.Balance,
		DisplayCurrency: w.Currency,
	}
	if displayCurrency == "" {
		return view, nil
	}

	display := strings.ToUpper(displayCurrency)
	converted, err := s.fx.Convert(w.Balance, w.Currency, display)
	if err != nil {
		return nil, err
	}
	view.DisplayBalance = converted
	view.DisplayCurrency = display
	return view, nil
}

// ListTransactions returns a page of the owner's ledger, newest first.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	entries, total, err := s.entryRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}

// ChangeCurrency re-denominates the owner's primary wallet. Changing to the
// wallet's current currency is a no-op and returns a nil entry.
func (s *WalletServiceImpl) ChangeCurrency(ctx context.Context, ownerID uuid.UUID, newCurrency string) (*domain.Wallet, *domain.LedgerEntry, error) {
	newCurrency = strings.ToUpper(newCurrency)
	if !s.fx.Supported(newCurrency) {
		return nil, nil, apperror.ErrUnsupportedCurrency(newCurrency)
	}

	w, err := s.GetOrCreateWallet(ctx, ownerID, "")
	if err != nil {
		return nil, nil, err
	}
	if w.Currency == newCurrency {
		return w, nil, nil
	}

	other, err := s.walletRepo.GetByOwnerAndCurrency(ctx, ownerID, newCurrency)
	if err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if other != nil {
		return nil, nil, apperror.Validation("owner already has an active " + newCurrency + " wallet")
	}

	var (
		updated *domain.Wallet
		entry   *domain.LedgerEntry
	)
	err = s.ledger.RunInTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.ledger.LockWallets(ctx, tx, w.ID)
		if err != nil {
			return err
		}
		updated = locked[w.ID]
		entry, err = s.ledger.Redenominate(ctx, tx, updated, newCurrency)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info().
		Str("wallet_id", w.ID.String()).
		Str("from", w.Currency).
		Str("to", newCurrency).
		Int64("balance_before", entry.BalanceBefore).
		Int64("balance_after", entry.BalanceAfter).
		Msg("wallet currency changed")

	return updated, entry, nil
}
