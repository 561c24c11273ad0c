package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Game identifies a provably-fair game.
type Game string

const (
	GameTaiXiu Game = "TAIXIU"
	GameSlots  Game = "SLOTS"
	GameWheel  Game = "WHEEL"
)

// ParseGame validates a game name (case-insensitive).
func ParseGame(s string) (Game, error) {
	for _, g := range []Game{GameTaiXiu, GameSlots, GameWheel} {
		if strings.EqualFold(s, string(g)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown game %q", s)
}

// BetKind is the closed set of stake kinds across all games.
type BetKind string

const (
	BetTai       BetKind = "TAI"
	BetXiu       BetKind = "XIU"
	BetEven      BetKind = "EVEN"
	BetOdd       BetKind = "ODD"
	BetAnyTriple BetKind = "ANY_TRIPLE"
	BetSpin      BetKind = "SPIN"
)

// ParseBetKind validates a bet kind (case-insensitive).
func ParseBetKind(s string) (BetKind, error) {
	for _, k := range []BetKind{BetTai, BetXiu, BetEven, BetOdd, BetAnyTriple, BetSpin} {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown bet kind %q", s)
}

// BetStatus is the settled state of one stake.
type BetStatus string

const (
	BetStatusWon  BetStatus = "WON"
	BetStatusLost BetStatus = "LOST"
)

// RangeSpec asks the outcome engine for Count values in [0, Range).
type RangeSpec struct {
	Count int
	Range uint32
}

// Stake is one requested wager inside a round.
type Stake struct {
	Kind   BetKind `json:"kind"`
	Amount int64   `json:"amount"`
}

// Bet is a settled stake.
type Bet struct {
	ID        uuid.UUID `json:"id"`
	RoundID   uuid.UUID `json:"round_id"`
	Kind      BetKind   `json:"kind"`
	Amount    int64     `json:"amount"`
	WinAmount int64     `json:"win_amount"`
	Status    BetStatus `json:"status"`
}

// Round groups the stakes resolved against one provably-fair outcome.
type Round struct {
	ID             uuid.UUID `json:"id"`
	Game           Game      `json:"game"`
	PlayerWalletID uuid.UUID `json:"player_wallet_id"`
	HouseWalletID  uuid.UUID `json:"house_wallet_id"`
	ServerSeed     string    `json:"server_seed"`
	ServerSeedHash string    `json:"server_seed_hash"`
	ClientSeed     string    `json:"client_seed"`
	Nonce          int64     `json:"nonce"`
	Outcome        []int     `json:"outcome"`
	TotalStake     int64     `json:"total_stake"`
	TotalWin       int64     `json:"total_win"`
	Currency       string    `json:"currency"`
	Bets           []Bet     `json:"bets,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SeedCommitment is a server seed whose hash was published before play.
type SeedCommitment struct {
	SealedSeed string `json:"sealed_seed"`
	Hash       string `json:"hash"`
	Nonce      int64  `json:"nonce"`
}
