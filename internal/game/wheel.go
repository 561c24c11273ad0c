package game

import (
	"fairplay-wallet/internal/core/domain"
)

// wheelSegments holds the multiplier of each of the 20 segments. Segment 19
// is the bonus slot.
var wheelSegments = []int64{0, 1, 2, 0, 1, 3, 0, 1, 2, 0, 5, 1, 0, 2, 1, 0, 10, 1, 0, 50}

// Wheel pays stake * multiplier of the segment the spin lands on.
type Wheel struct{}

func (Wheel) Game() domain.Game { return domain.GameWheel }

func (Wheel) Spec() domain.RangeSpec {
	return domain.RangeSpec{Count: 1, Range: uint32(len(wheelSegments))}
}

func (Wheel) Accepts(kind domain.BetKind) bool { return kind == domain.BetSpin }

func (Wheel) StakeUnit() int64 { return 1 }

func (Wheel) Payout(kind domain.BetKind, amount int64, outcome []int) int64 {
	if kind != domain.BetSpin || len(outcome) != 1 {
		return 0
	}
	if outcome[0] < 0 || outcome[0] >= len(wheelSegments) {
		return 0
	}
	return amount * wheelSegments[outcome[0]]
}

func (Wheel) MaxPayout(stakes []domain.Stake) int64 {
	top := wheelSegments[0]
	for _, m := range wheelSegments {
		top = max(top, m)
	}
	var total int64
	for _, st := range stakes {
		if st.Kind == domain.BetSpin {
			total += st.Amount * top
		}
	}
	return total
}
