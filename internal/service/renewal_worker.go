package service

import (
	"context"
	"fmt"
	"time"

	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/internal/metrics"
	"fairplay-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type renewalResult string

const (
	renewalRenewed renewalResult = "renewed"
	renewalExpired renewalResult = "expired"
	renewalSkipped renewalResult = "skipped"
	renewalError   renewalResult = "error"
)

// RenewalStats counts what one pass over due subscriptions did.
type RenewalStats struct {
	Renewed int
	Expired int
	Skipped int
	Failed  int
}

// RenewalWorker charges due subscriptions on a fixed interval.
type RenewalWorker struct {
	subs      ports.SubscriptionRepository
	ledger    ports.Ledger
	fx        ports.CurrencyConverter
	interval  time.Duration
	batchSize int
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

// NewRenewalWorker creates a new RenewalWorker.
func NewRenewalWorker(
	subs ports.SubscriptionRepository,
	ledger ports.Ledger,
	fx ports.CurrencyConverter,
	interval time.Duration,
	batchSize int,
	m *metrics.Metrics,
	log zerolog.Logger,
) *RenewalWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &RenewalWorker{
		subs:      subs,
		ledger:    ledger,
		fx:        fx,
		interval:  interval,
		batchSize: batchSize,
		metrics:   m,
		log:       log.With().Str("component", "renewal_worker").Logger(),
		now:       time.Now,
	}
}

// Start runs a pass every interval until ctx is done.
func (w *RenewalWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Int("batch_size", w.batchSize).Msg("renewal worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := w.RunOnce(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("renewal pass failed")
				continue
			}
			if stats != (RenewalStats{}) {
				w.log.Info().
					Int("renewed", stats.Renewed).
					Int("expired", stats.Expired).
					Int("skipped", stats.Skipped).
					Int("failed", stats.Failed).
					Msg("renewal pass finished")
			}
		case <-ctx.Done():
			w.log.Info().Msg("renewal worker stopped")
			return
		}
	}
}

// RunOnce processes one batch of due subscriptions. Failures of individual
// subscriptions are counted and left for the next pass.
func (w *RenewalWorker) RunOnce(ctx context.Context) (RenewalStats, error) {
	var stats RenewalStats

	due, err := w.subs.ListDueForRenewal(ctx, w.now(), w.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list due subscriptions: %w", err)
	}

	for _, sub := range due {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		result, err := w.renew(ctx, sub.ID)
		w.metrics.Renewal(string(result), w.now().Unix())

		switch result {
		case renewalRenewed:
			stats.Renewed++
		case renewalExpired:
			stats.Expired++
			w.log.Info().Str("subscription_id", sub.ID.String()).Str("plan", sub.PlanCode).Msg("subscription expired for insufficient funds")
		case renewalSkipped:
			stats.Skipped++
		default:
			stats.Failed++
			w.log.Error().Err(err).Str("subscription_id", sub.ID.String()).Msg("subscription renewal failed")
		}
	}
	return stats, nil
}

func (w *RenewalWorker) renew(ctx context.Context, id uuid.UUID) (renewalResult, error) {
	var result renewalResult

	err := w.ledger.RunInTx(ctx, func(tx pgx.Tx) error {
		now := w.now()
		sub, err := w.subs.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock subscription: %w", err))
		}
		if sub == nil || !sub.DueForRenewal(now) {
			result = renewalSkipped
			return nil
		}

		locked, err := w.ledger.LockWallets(ctx, tx, sub.WalletID)
		if err != nil {
			return err
		}
		wallet := locked[sub.WalletID]

		price, err := w.fx.Convert(sub.Price, w.fx.Base(), wallet.Currency)
		if err != nil {
			return err
		}

		if price > 0 {
			_, err = w.ledger.Apply(ctx, tx, wallet, -price, ports.EntryParams{
				Type:        domain.EntryTypeSubscription,
				Description: "Renewal of " + sub.PlanCode,
				Metadata: map[string]any{
					"subscription_id": sub.ID.String(),
					"plan_code":       sub.PlanCode,
					"period_end":      sub.PeriodEnd.UTC().Format(time.RFC3339),
				},
			})
		}
		switch {
		case apperror.HasCode(err, apperror.CodeInsufficientFunds):
			sub.Expire(now)
			result = renewalExpired
		case err != nil:
			return err
		default:
			sub.Advance(now)
			result = renewalRenewed
		}

		if err := w.subs.Update(ctx, tx, sub); err != nil {
			return apperror.InternalError(fmt.Errorf("update subscription: %w", err))
		}
		return nil
	})
	if err != nil {
		return renewalError, err
	}
	return result, nil
}
