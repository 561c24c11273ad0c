package game

import (
	"fairplay-wallet/internal/core/domain"
)

const (
	taiXiuEvenMoney  = 2
	taiXiuAnyTriple  = 31
	taiXiuDiceFaces  = 6
	taiXiuDiceCount  = 3
	taiXiuSmallUpper = 10
)

// TaiXiu is a three-dice game. Sum bets lose on any triple.
type TaiXiu struct{}

func (TaiXiu) Game() domain.Game { return domain.GameTaiXiu }

func (TaiXiu) Spec() domain.RangeSpec {
	return domain.RangeSpec{Count: taiXiuDiceCount, Range: taiXiuDiceFaces}
}

func (TaiXiu) StakeUnit() int64 { return 1 }

func (TaiXiu) Accepts(kind domain.BetKind) bool {
	switch kind {
	case domain.BetTai, domain.BetXiu, domain.BetEven, domain.BetOdd, domain.BetAnyTriple:
		return true
	}
	return false
}

// Dice converts engine values in [0,6) to faces 1..6.
func Dice(outcome []int) []int {
	dice := make([]int, len(outcome))
	for i, v := range outcome {
		dice[i] = v + 1
	}
	return dice
}

func (TaiXiu) Payout(kind domain.BetKind, amount int64, outcome []int) int64 {
	if len(outcome) != taiXiuDiceCount {
		return 0
	}
	dice := Dice(outcome)
	sum := dice[0] + dice[1] + dice[2]
	triple := dice[0] == dice[1] && dice[1] == dice[2]

	var win bool
	mult := int64(taiXiuEvenMoney)
	switch kind {
	case domain.BetTai:
		win = !triple && sum > taiXiuSmallUpper
	case domain.BetXiu:
		win = !triple && sum <= taiXiuSmallUpper
	case domain.BetEven:
		win = !triple && sum%2 == 0
	case domain.BetOdd:
		win = !triple && sum%2 == 1
	case domain.BetAnyTriple:
		win = triple
		mult = taiXiuAnyTriple
	}
	if !win {
		return 0
	}
	return amount * mult
}

// MaxPayout enumerates all 216 rolls.
func (r TaiXiu) MaxPayout(stakes []domain.Stake) int64 {
	var best int64
	outcome := make([]int, taiXiuDiceCount)
	for a := 0; a < taiXiuDiceFaces; a++ {
		for b := 0; b < taiXiuDiceFaces; b++ {
			for c := 0; c < taiXiuDiceFaces; c++ {
				outcome[0], outcome[1], outcome[2] = a, b, c
				best = max(best, TotalPayout(r, stakes, outcome))
			}
		}
	}
	return best
}
