package postgres

import (
	"context"
	"errors"
	"fmt"

	"fairplay-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GameRepo implements ports.GameRepository.
type GameRepo struct {
	pool Pool
}

// NewGameRepo creates a new GameRepo.
func NewGameRepo(pool Pool) *GameRepo {
	return &GameRepo{pool: pool}
}

// CreateRound inserts a settled round and its bets.
func (r *GameRepo) CreateRound(ctx context.Context, tx pgx.Tx, round *domain.Round) error {
	query := `INSERT INTO game_rounds (id, game, player_wallet_id, house_wallet_id, server_seed,
		server_seed_hash, client_seed, nonce, outcome, total_stake, total_win, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		round.ID, round.Game, round.PlayerWalletID, round.HouseWalletID, round.ServerSeed,
		round.ServerSeedHash, round.ClientSeed, round.Nonce, round.Outcome,
		round.TotalStake, round.TotalWin, round.Currency, round.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game round: %w", err)
	}

	for i, b := range round.Bets {
		_, err := tx.Exec(ctx, `INSERT INTO game_bets (id, round_id, seq, kind, amount, win_amount, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			b.ID, round.ID, i, b.Kind, b.Amount, b.WinAmount, b.Status)
		if err != nil {
			return fmt.Errorf("insert game bet: %w", err)
		}
	}
	return nil
}

// GetRound fetches a round with its bets.
func (r *GameRepo) GetRound(ctx context.Context, id uuid.UUID) (*domain.Round, error) {
	query := `SELECT id, game, player_wallet_id, house_wallet_id, server_seed, server_seed_hash,
		client_seed, nonce, outcome, total_stake, total_win, currency, created_at
		FROM game_rounds WHERE id = $1`

	round := &domain.Round{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&round.ID, &round.Game, &round.PlayerWalletID, &round.HouseWalletID, &round.ServerSeed,
		&round.ServerSeedHash, &round.ClientSeed, &round.Nonce, &round.Outcome,
		&round.TotalStake, &round.TotalWin, &round.Currency, &round.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get game round: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, round_id, kind, amount, win_amount, status
		FROM game_bets WHERE round_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("list game bets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b domain.Bet
		if err := rows.Scan(&b.ID, &b.RoundID, &b.Kind, &b.Amount, &b.WinAmount, &b.Status); err != nil {
			return nil, fmt.Errorf("scan game bet: %w", err)
		}
		round.Bets = append(round.Bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game bets: %w", err)
	}
	return round, nil
}
