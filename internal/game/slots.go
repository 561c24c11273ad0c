package game

import (
	"fairplay-wallet/internal/core/domain"
)

// slotMultipliers is indexed by symbol.
var slotMultipliers = []int64{2, 3, 5, 10, 20, 50}

// slotLines are the five paylines over a row-major 3x3 grid.
var slotLines = [][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Slots is a 3x3 grid of six symbols. Each matching payline pays
// stake * multiplier / number of lines.
type Slots struct{}

func (Slots) Game() domain.Game { return domain.GameSlots }

func (Slots) Spec() domain.RangeSpec {
	return domain.RangeSpec{Count: 9, Range: uint32(len(slotMultipliers))}
}

func (Slots) Accepts(kind domain.BetKind) bool { return kind == domain.BetSpin }

// StakeUnit is the line count, since each line pays a share of the stake.
func (Slots) StakeUnit() int64 { return int64(len(slotLines)) }

func (Slots) Payout(kind domain.BetKind, amount int64, outcome []int) int64 {
	if kind != domain.BetSpin || len(outcome) != 9 {
		return 0
	}
	var total int64
	for _, line := range slotLines {
		sym := outcome[line[0]]
		if sym < 0 || sym >= len(slotMultipliers) {
			continue
		}
		if outcome[line[1]] == sym && outcome[line[2]] == sym {
			total += linePay(amount, sym)
		}
	}
	return total
}

// MaxPayout is reached when every line shows the best symbol, which needs
// the whole grid to match.
func (Slots) MaxPayout(stakes []domain.Stake) int64 {
	var total int64
	for _, st := range stakes {
		if st.Kind != domain.BetSpin {
			continue
		}
		var best int64
		for sym := range slotMultipliers {
			best = max(best, int64(len(slotLines))*linePay(st.Amount, sym))
		}
		total += best
	}
	return total
}

func linePay(amount int64, sym int) int64 {
	return amount * slotMultipliers[sym] / int64(len(slotLines))
}
