package service

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/internal/metrics"
	"fairplay-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// AmountLimits bounds a deposit in the gateway currency. Zero means no bound.
type AmountLimits struct {
	Min int64
	Max int64
}

// DepositOptions configures DepositServiceImpl.
type DepositOptions struct {
	Limits         map[string]AmountLimits // keyed by method
	GatewayTimeout time.Duration
	CacheTTL       time.Duration
}

// DepositServiceImpl implements ports.DepositService.
type DepositServiceImpl struct {
	gateways       ports.GatewayRegistry
	ledger         ports.Ledger
	wallets        ports.WalletService
	entryRepo      ports.LedgerRepository
	fx             ports.CurrencyConverter
	cache          ports.CallbackCache
	limits         map[string]AmountLimits
	gatewayTimeout time.Duration
	cacheTTL       time.Duration
	metrics        *metrics.Metrics
	log            zerolog.Logger
	now            func() time.Time
}

// NewDepositService creates a new DepositServiceImpl.
func NewDepositService(
	gateways ports.GatewayRegistry,
	ledger ports.Ledger,
	wallets ports.WalletService,
	entryRepo ports.LedgerRepository,
	fx ports.CurrencyConverter,
	cache ports.CallbackCache,
	opts DepositOptions,
	m *metrics.Metrics,
	log zerolog.Logger,
) *DepositServiceImpl {
	limits := make(map[string]AmountLimits, len(opts.Limits))
	for k, v := range opts.Limits {
		limits[strings.ToLower(k)] = v
	}
	return &DepositServiceImpl{
		gateways:       gateways,
		ledger:         ledger,
		wallets:        wallets,
		entryRepo:      entryRepo,
		fx:             fx,
		cache:          cache,
		limits:         limits,
		gatewayTimeout: opts.GatewayTimeout,
		cacheTTL:       opts.CacheTTL,
		metrics:        m,
		log:            log,
		now:            time.Now,
	}
}

// InitiateDeposit records a PENDING deposit entry and asks the gateway for
// a payment URL. A gateway failure leaves the entry pending.
func (s *DepositServiceImpl) InitiateDeposit(ctx context.Context, req ports.DepositRequest) (*ports.DepositInitiation, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	currency := strings.ToUpper(req.Currency)
	if !s.fx.Supported(currency) {
		return nil, apperror.ErrUnsupportedCurrency(req.Currency)
	}
	method := strings.ToLower(req.Method)
	gw, ok := s.gateways.Get(method)
	if !ok {
		return nil, apperror.ErrUnsupportedPaymentMethod(req.Method)
	}

	gwAmount, err := s.fx.Convert(req.Amount, currency, gw.Currency())
	if err != nil {
		return nil, err
	}
	if lim, ok := s.limits[method]; ok {
		if gwAmount < lim.Min || (lim.Max > 0 && gwAmount > lim.Max) {
			return nil, apperror.ErrAmountOutOfRange(lim.Min, lim.Max, gw.Currency())
		}
	}
	if gwAmount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.wallets.GetOrCreateWallet(ctx, req.OwnerID, currency)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive() {
		return nil, apperror.ErrWalletLocked()
	}
	credit, err := s.fx.Convert(req.Amount, currency, wallet.Currency)
	if err != nil {
		return nil, err
	}

	orderID := ulid.Make().String()
	gatewayName := gw.Name()
	entry := &domain.LedgerEntry{
		ID:             uuid.New(),
		WalletID:       wallet.ID,
		OwnerID:        wallet.OwnerID,
		Type:           domain.EntryTypeDeposit,
		Amount:         credit,
		Status:         domain.EntryStatusPending,
		Gateway:        &gatewayName,
		GatewayOrderID: &orderID,
		Description:    "Deposit via " + gatewayName,
		Metadata: map[string]any{
			domain.MetaRequestedAmount:   req.Amount,
			domain.MetaRequestedCurrency: currency,
			domain.MetaGatewayAmount:     gwAmount,
			domain.MetaGatewayCurrency:   gw.Currency(),
			domain.MetaMethod:            method,
		},
		CreatedAt: s.now(),
	}

	err = s.ledger.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.entryRepo.Create(ctx, tx, entry); err != nil {
			return apperror.InternalError(fmt.Errorf("create pending deposit: %w", err))
		}
		return nil
	})
	if err != nil {
		s.metrics.DepositInitiated(method, "error")
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	paymentURL, err := gw.CreatePaymentURL(gwCtx, ports.PaymentURLRequest{
		OrderID:   orderID,
		Amount:    gwAmount,
		OrderInfo: "Deposit " + orderID,
		ClientIP:  req.ClientIP,
	})
	if err != nil {
		s.metrics.DepositInitiated(method, "gateway_unavailable")
		s.log.Warn().Err(err).
			Str("order_id", orderID).
			Str("transaction_id", entry.ID.String()).
			Str("method", method).
			Msg("gateway did not return a payment url")
		return nil, apperror.ErrGatewayUnavailable(err, map[string]any{
			"transaction_id": entry.ID.String(),
			"order_id":       orderID,
			"amount":         req.Amount,
			"currency":       currency,
			"method":         method,
		})
	}

	s.metrics.DepositInitiated(method, "ok")
	s.log.Info().
		Str("order_id", orderID).
		Str("wallet_id", wallet.ID.String()).
		Str("method", method).
		Int64("gateway_amount", gwAmount).
		Msg("deposit initiated")

	return &ports.DepositInitiation{
		TransactionID: entry.ID,
		OrderID:       orderID,
		PaymentURL:    paymentURL,
	}, nil
}

// HandleCallback reconciles a gateway result. Return and notify deliveries
// share this path; only an unknown method is reported as an error.
func (s *DepositServiceImpl) HandleCallback(ctx context.Context, method string, source domain.CallbackSource, payload map[string]string) (*ports.CallbackOutcome, error) {
	gw, ok := s.gateways.Get(method)
	if !ok {
		return nil, apperror.ErrUnsupportedPaymentMethod(method)
	}

	var out *ports.CallbackOutcome
	if !gw.VerifySignature(payload) {
		s.log.Warn().Str("provider", gw.Name()).Str("source", string(source)).Msg("callback signature mismatch")
		out = &ports.CallbackOutcome{Ack: domain.AckInvalidSignature, Message: "invalid signature"}
	} else {
		res := gw.ProcessCallback(payload)
		out = s.reconcile(ctx, gw, res)
		out.OrderID = res.OrderID
	}

	s.metrics.Callback(gw.Name(), string(source), out.Ack.String())
	return out, nil
}

func (s *DepositServiceImpl) reconcile(ctx context.Context, gw ports.PaymentGateway, res ports.CallbackResult) *ports.CallbackOutcome {
	if res.OrderID == "" {
		return &ports.CallbackOutcome{Ack: domain.AckOrderNotFound, Message: "missing order id"}
	}

	cached, err := s.cache.Get(ctx, res.OrderID)
	if err != nil {
		s.log.Debug().Err(err).Str("order_id", res.OrderID).Msg("callback cache unavailable")
	} else if cached != "" {
		return &ports.CallbackOutcome{Ack: domain.AckAlreadyProcessed, Status: cached, Message: "already processed"}
	}

	entry, err := s.entryRepo.GetByOrderID(ctx, res.OrderID)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", res.OrderID).Msg("load deposit entry")
		return &ports.CallbackOutcome{Ack: domain.AckRetry, Message: "temporary failure"}
	}
	if entry == nil || entry.Type != domain.EntryTypeDeposit || entry.Gateway == nil || *entry.Gateway != gw.Name() {
		return &ports.CallbackOutcome{Ack: domain.AckOrderNotFound, Message: "order not found"}
	}
	if !entry.IsPending() {
		s.remember(ctx, res.OrderID, entry.Status)
		return &ports.CallbackOutcome{Ack: domain.AckAlreadyProcessed, Status: entry.Status, Message: "already processed"}
	}

	expected, ok := metaInt64(entry.Metadata, domain.MetaGatewayAmount)
	if !ok || res.Amount != expected {
		s.log.Warn().
			Str("order_id", res.OrderID).
			Int64("expected", expected).
			Int64("received", res.Amount).
			Msg("callback amount mismatch")
		return &ports.CallbackOutcome{Ack: domain.AckInvalidAmount, Status: entry.Status, Message: "invalid amount"}
	}

	var (
		settled  domain.LedgerEntry
		raceLost bool
	)
	err = s.ledger.RunInTx(ctx, func(tx pgx.Tx) error {
		raceLost = false
		e, err := s.entryRepo.GetByOrderIDForUpdate(ctx, tx, res.OrderID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock deposit entry: %w", err))
		}
		if e == nil {
			return apperror.InternalError(fmt.Errorf("deposit entry %s vanished", res.OrderID))
		}
		if !e.IsPending() {
			raceLost = true
			settled = *e
			return nil
		}

		e.Metadata = withProviderResult(e.Metadata, res)
		if !res.Success {
			if err := s.ledger.Settle(ctx, tx, nil, e, domain.EntryStatusFailed, 0); err != nil {
				return err
			}
			settled = *e
			return nil
		}

		locked, err := s.ledger.LockWallets(ctx, tx, e.WalletID)
		if err != nil {
			return err
		}
		w := locked[e.WalletID]
		credit, err := s.fx.Convert(res.Amount, gw.Currency(), w.Currency)
		if err != nil {
			return err
		}
		if res.ProviderTxnID != "" {
			txnID := res.ProviderTxnID
			e.ProviderTxnID = &txnID
		}
		if err := s.ledger.Settle(ctx, tx, w, e, domain.EntryStatusCompleted, credit); err != nil {
			return err
		}
		settled = *e
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("order_id", res.OrderID).Str("provider", gw.Name()).Msg("deposit settlement failed")
		return &ports.CallbackOutcome{Ack: domain.AckRetry, Status: domain.EntryStatusPending, Message: "temporary failure"}
	}

	s.remember(ctx, res.OrderID, settled.Status)
	if raceLost {
		return &ports.CallbackOutcome{Ack: domain.AckAlreadyProcessed, Status: settled.Status, Message: "already processed"}
	}

	s.log.Info().
		Str("order_id", res.OrderID).
		Str("provider", gw.Name()).
		Str("status", string(settled.Status)).
		Int64("amount", settled.Amount).
		Msg("deposit settled")

	return &ports.CallbackOutcome{Ack: domain.AckAccepted, Status: settled.Status, Message: res.Message}
}

// remember caches a terminal status. Failures only cost a database read later.
func (s *DepositServiceImpl) remember(ctx context.Context, orderID string, status domain.EntryStatus) {
	if err := s.cache.Set(ctx, orderID, status, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("order_id", orderID).Msg("cache callback status")
	}
}

func withProviderResult(meta map[string]any, res ports.CallbackResult) map[string]any {
	out := make(map[string]any, len(meta)+2)
	maps.Copy(out, meta)
	out[domain.MetaProviderCode] = res.Code
	out[domain.MetaProviderMessage] = res.Message
	return out
}

// metaInt64 reads an integer written to metadata, whether it came back from
// JSON as a float, a json.Number or stayed an int64 in memory.
func metaInt64(meta map[string]any, key string) (int64, bool) {
	switch v := meta[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

var _ ports.DepositService = (*DepositServiceImpl)(nil)
