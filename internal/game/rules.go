// Package game holds the payout tables of the provably-fair games. Rules are
// pure: they map an outcome produced by the fairness engine to payouts and
// know nothing about wallets.
package game

import (
	"fairplay-wallet/internal/core/domain"
)

// Rules describes one game. Payout returns the gross amount returned to the
// player for a stake (stake included), or zero if the stake lost.
type Rules interface {
	Game() domain.Game
	Spec() domain.RangeSpec
	Accepts(kind domain.BetKind) bool
	Payout(kind domain.BetKind, amount int64, outcome []int) int64
	// MaxPayout is the largest total payout over every possible outcome.
	MaxPayout(stakes []domain.Stake) int64
	// StakeUnit is the stake granularity at which every payout is an exact
	// multiple of stake / StakeUnit.
	StakeUnit() int64
}

// Default returns the rules of every supported game keyed by game.
func Default() map[domain.Game]Rules {
	return map[domain.Game]Rules{
		domain.GameTaiXiu: TaiXiu{},
		domain.GameSlots:  Slots{},
		domain.GameWheel:  Wheel{},
	}
}

// TotalPayout sums Payout over stakes for one outcome.
func TotalPayout(r Rules, stakes []domain.Stake, outcome []int) int64 {
	var total int64
	for _, st := range stakes {
		total += r.Payout(st.Kind, st.Amount, outcome)
	}
	return total
}
