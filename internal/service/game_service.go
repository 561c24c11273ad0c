package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/internal/game"
	"fairplay-wallet/internal/metrics"
	"fairplay-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const clientSeedBytes = 16

// GameServiceImpl implements ports.GameService.
type GameServiceImpl struct {
	ledger        ports.Ledger
	gameRepo      ports.GameRepository
	seeds         ports.SeedStore
	enc           ports.EncryptionService
	engine        *FairnessEngine
	fx            ports.CurrencyConverter
	rules         map[domain.Game]game.Rules
	houseWalletID uuid.UUID
	maxStake      int64
	seedTTL       time.Duration
	metrics       *metrics.Metrics
	log           zerolog.Logger
	now           func() time.Time
}

// GameOptions holds the game settings read from configuration.
type GameOptions struct {
	HouseWalletID uuid.UUID
	MaxStake      int64
	SeedTTL       time.Duration
}

// NewGameService creates a new GameServiceImpl.
func NewGameService(
	ledger ports.Ledger,
	gameRepo ports.GameRepository,
	seeds ports.SeedStore,
	enc ports.EncryptionService,
	engine *FairnessEngine,
	fx ports.CurrencyConverter,
	rules map[domain.Game]game.Rules,
	opts GameOptions,
	m *metrics.Metrics,
	log zerolog.Logger,
) *GameServiceImpl {
	return &GameServiceImpl{
		ledger:        ledger,
		gameRepo:      gameRepo,
		seeds:         seeds,
		enc:           enc,
		engine:        engine,
		fx:            fx,
		rules:         rules,
		houseWalletID: opts.HouseWalletID,
		maxStake:      opts.MaxStake,
		seedTTL:       opts.SeedTTL,
		metrics:       m,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CommitSeed generates a server seed for the player's next round and
// publishes its hash. The seed is sealed before it leaves the process.
func (s *GameServiceImpl) CommitSeed(ctx context.Context, playerWalletID uuid.UUID) (*ports.SeedView, error) {
	seed, hash, err := s.engine.NewRound()
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	nonce, err := s.seeds.NextNonce(ctx, playerWalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("next nonce: %w", err))
	}

	sealed, err := s.enc.Encrypt(seed)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("seal server seed: %w", err))
	}

	c := domain.SeedCommitment{SealedSeed: sealed, Hash: hash, Nonce: nonce}
	if err := s.seeds.Put(ctx, playerWalletID, c, s.seedTTL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("store seed commitment: %w", err))
	}

	return &ports.SeedView{ServerSeedHash: hash, Nonce: nonce}, nil
}

// PlaceBet resolves one round and settles it against the player and house
// wallets in a single transaction.
func (s *GameServiceImpl) PlaceBet(ctx context.Context, req ports.PlaceBetRequest) (*ports.BetResult, error) {
	rules, total, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	houseID := req.HouseWalletID
	if houseID == uuid.Nil {
		houseID = s.houseWalletID
	}
	if houseID == uuid.Nil {
		return nil, apperror.InternalError(fmt.Errorf("house wallet not configured"))
	}
	if houseID == req.PlayerWalletID {
		return nil, apperror.ErrInvalidStake("player and house wallets must differ")
	}

	seed, commitment, err := s.takeSeed(ctx, req.PlayerWalletID)
	if err != nil {
		return nil, err
	}

	clientSeed := req.ClientSeed
	if clientSeed == "" {
		if clientSeed, err = randomHex(clientSeedBytes); err != nil {
			return nil, apperror.InternalError(err)
		}
	}

	var result *ports.BetResult
	err = s.ledger.RunInTx(ctx, func(tx pgx.Tx) error {
		var err error
		result, err = s.settle(ctx, tx, req, rules, total, houseID, seed, commitment, clientSeed)
		return err
	})
	if err != nil {
		s.restoreSeed(ctx, req.PlayerWalletID, commitment)
		if apperror.HasCode(err, apperror.CodeHouseInsolvent) {
			s.metrics.HouseInsolvent()
		}
		s.metrics.RoundSettled(string(req.Game), "rejected")
		return nil, err
	}

	outcome := "loss"
	if result.TotalWin > 0 {
		outcome = "win"
	}
	s.metrics.RoundSettled(string(req.Game), outcome)

	s.log.Info().
		Str("round_id", result.RoundID.String()).
		Str("game", string(req.Game)).
		Str("player_wallet_id", req.PlayerWalletID.String()).
		Int64("total_stake", result.TotalStake).
		Int64("total_win", result.TotalWin).
		Msg("round settled")

	return result, nil
}

func (s *GameServiceImpl) validate(req ports.PlaceBetRequest) (game.Rules, int64, error) {
	rules, ok := s.rules[req.Game]
	if !ok {
		return nil, 0, apperror.ErrUnknownGame(string(req.Game))
	}
	if len(req.Stakes) == 0 {
		return nil, 0, apperror.ErrInvalidStake("at least one stake is required")
	}

	var total int64
	for _, st := range req.Stakes {
		if st.Amount <= 0 {
			return nil, 0, apperror.ErrInvalidStake("stake amount must be positive")
		}
		if !rules.Accepts(st.Kind) {
			return nil, 0, apperror.ErrInvalidStake(fmt.Sprintf("bet kind %s is not valid for %s", st.Kind, req.Game))
		}
		total += st.Amount
		if total < 0 || (s.maxStake > 0 && total > s.maxStake) {
			return nil, 0, apperror.ErrInvalidStake("total stake exceeds the limit")
		}
	}
	return rules, total, nil
}

// settle runs inside the round's transaction. Amounts in stakes and payouts
// are in the player's currency; house legs are converted exactly, so both
// sides of every transfer carry the same value.
func (s *GameServiceImpl) settle(
	ctx context.Context,
	tx pgx.Tx,
	req ports.PlaceBetRequest,
	rules game.Rules,
	total int64,
	houseID uuid.UUID,
	seed string,
	commitment domain.SeedCommitment,
	clientSeed string,
) (*ports.BetResult, error) {
	locked, err := s.ledger.LockWallets(ctx, tx, req.PlayerWalletID, houseID)
	if err != nil {
		return nil, err
	}
	player, house := locked[req.PlayerWalletID], locked[houseID]

	if !player.IsActive() {
		return nil, apperror.ErrWalletLocked()
	}
	if player.Balance < total {
		return nil, apperror.ErrInsufficientFunds()
	}

	unit, err := s.fx.ExactUnit(player.Currency, house.Currency)
	if err != nil {
		return nil, err
	}
	if unit > 1 {
		step := unit * rules.StakeUnit()
		for _, st := range req.Stakes {
			if st.Amount%step != 0 {
				return nil, apperror.ErrInvalidStake(fmt.Sprintf(
					"stakes in %s must be multiples of %d to settle against the %s house wallet",
					player.Currency, step, house.Currency))
			}
		}
	}

	roundID := uuid.New()
	meta := map[string]any{"round_id": roundID.String(), "game": string(req.Game)}
	betParams := ports.EntryParams{Type: domain.EntryTypeBet, Description: fmt.Sprintf("%s stake", req.Game), Metadata: meta}
	winParams := ports.EntryParams{Type: domain.EntryTypeWin, Description: fmt.Sprintf("%s payout", req.Game), Metadata: meta}

	if _, err := s.ledger.Apply(ctx, tx, player, -total, betParams); err != nil {
		return nil, err
	}
	if err := s.applyHouse(ctx, tx, house, player.Currency, total, unit, betParams); err != nil {
		return nil, err
	}

	maxPayout, err := s.fx.Convert(rules.MaxPayout(req.Stakes), player.Currency, house.Currency)
	if err != nil {
		return nil, err
	}
	if house.Balance < maxPayout {
		s.log.Warn().
			Str("house_wallet_id", house.ID.String()).
			Int64("house_balance", house.Balance).
			Int64("max_payout", maxPayout).
			Msg("house cannot cover maximum payout")
		return nil, apperror.ErrHouseInsolvent()
	}

	outcome, err := s.engine.Resolve(seed, clientSeed, commitment.Nonce, rules.Spec())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve outcome: %w", err))
	}

	bets := make([]domain.Bet, len(req.Stakes))
	var totalWin int64
	for i, st := range req.Stakes {
		win := rules.Payout(st.Kind, st.Amount, outcome)
		status := domain.BetStatusLost
		if win > 0 {
			status = domain.BetStatusWon
		}
		bets[i] = domain.Bet{
			ID:        uuid.New(),
			RoundID:   roundID,
			Kind:      st.Kind,
			Amount:    st.Amount,
			WinAmount: win,
			Status:    status,
		}
		totalWin += win
	}

	if totalWin > 0 {
		if err := s.applyHouse(ctx, tx, house, player.Currency, -totalWin, unit, winParams); err != nil {
			return nil, err
		}
		if _, err := s.ledger.Apply(ctx, tx, player, totalWin, winParams); err != nil {
			return nil, err
		}
	}

	round := &domain.Round{
		ID:             roundID,
		Game:           req.Game,
		PlayerWalletID: player.ID,
		HouseWalletID:  house.ID,
		ServerSeed:     seed,
		ServerSeedHash: commitment.Hash,
		ClientSeed:     clientSeed,
		Nonce:          commitment.Nonce,
		Outcome:        outcome,
		TotalStake:     total,
		TotalWin:       totalWin,
		Currency:       player.Currency,
		Bets:           bets,
		CreatedAt:      s.now(),
	}
	if err := s.gameRepo.CreateRound(ctx, tx, round); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create round: %w", err))
	}

	return &ports.BetResult{
		RoundID:    roundID,
		Game:       req.Game,
		Outcome:    outcome,
		Bets:       bets,
		TotalStake: total,
		TotalWin:   totalWin,
		NewBalance: player.Balance,
		Currency:   player.Currency,
		Fairness: ports.FairnessProof{
			ServerSeedHash: commitment.Hash,
			ServerSeed:     seed,
			ClientSeed:     clientSeed,
			Nonce:          commitment.Nonce,
		},
	}, nil
}

// applyHouse books the house leg of amount (player currency). amount must be
// a multiple of unit so that no value is lost to rounding.
func (s *GameServiceImpl) applyHouse(ctx context.Context, tx pgx.Tx, house *domain.Wallet, fromCurrency string, amount, unit int64, p ports.EntryParams) error {
	if amount%unit != 0 {
		return apperror.InternalError(fmt.Errorf("house leg %d %s is not a multiple of %d", amount, fromCurrency, unit))
	}
	converted, err := s.fx.Convert(amount, fromCurrency, house.Currency)
	if err != nil {
		return err
	}
	_, err = s.ledger.Apply(ctx, tx, house, converted, p)
	return err
}

// takeSeed consumes the player's pending commitment. A round is only played
// against a seed whose hash was published before the bet.
func (s *GameServiceImpl) takeSeed(ctx context.Context, playerWalletID uuid.UUID) (string, domain.SeedCommitment, error) {
	c, err := s.seeds.Take(ctx, playerWalletID)
	if err != nil {
		return "", domain.SeedCommitment{}, apperror.ErrSeedStoreUnavailable(fmt.Errorf("take seed commitment: %w", err))
	}
	if c == nil {
		return "", domain.SeedCommitment{}, apperror.ErrSeedNotCommitted()
	}

	seed, err := s.enc.Decrypt(c.SealedSeed)
	if err != nil {
		return "", domain.SeedCommitment{}, apperror.ErrEncryptionFailure(fmt.Errorf("unseal server seed: %w", err))
	}
	if !s.engine.Verify(seed, c.Hash) {
		return "", domain.SeedCommitment{}, apperror.InternalError(fmt.Errorf("sealed seed does not match its commitment"))
	}
	return seed, *c, nil
}

// restoreSeed puts back a commitment whose round was rolled back so the
// published hash stays usable.
func (s *GameServiceImpl) restoreSeed(ctx context.Context, playerWalletID uuid.UUID, c domain.SeedCommitment) {
	if c.SealedSeed == "" {
		return
	}
	if err := s.seeds.Put(ctx, playerWalletID, c, s.seedTTL); err != nil {
		s.log.Warn().Err(err).Str("player_wallet_id", playerWalletID.String()).Msg("failed to restore seed commitment")
	}
}

// VerifyRound recomputes a stored round from its revealed seeds.
func (s *GameServiceImpl) VerifyRound(ctx context.Context, roundID uuid.UUID) (*ports.RoundVerification, error) {
	round, err := s.gameRepo.GetRound(ctx, roundID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get round: %w", err))
	}
	if round == nil {
		return nil, apperror.ErrNotFound("round")
	}

	rules, ok := s.rules[round.Game]
	if !ok {
		return nil, apperror.ErrUnknownGame(string(round.Game))
	}

	outcome, err := s.engine.Resolve(round.ServerSeed, round.ClientSeed, round.Nonce, rules.Spec())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve outcome: %w", err))
	}

	verified := s.engine.Verify(round.ServerSeed, round.ServerSeedHash) && slices.Equal(outcome, round.Outcome)
	return &ports.RoundVerification{Round: round, Verified: verified}, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
