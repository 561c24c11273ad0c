package service

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
	"sync"

	"fairplay-wallet/pkg/apperror"

	"github.com/shopspring/decimal"
)

// currencyPrecision is the number of minor-unit digits per currency.
var currencyPrecision = map[string]int32{
	"USD": 2,
	"EUR": 2,
	"VND": 0,
	"JPY": 0,
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// CurrencyServiceImpl implements ports.CurrencyConverter over an injected
// rate table. Rates are units of a currency per one unit of the base currency.
type CurrencyServiceImpl struct {
	mu    sync.RWMutex
	base  string
	rates map[string]decimal.Decimal
}

// NewCurrencyService builds the rate table from decimal strings keyed by
// currency code. The base currency always has rate 1.
func NewCurrencyService(base string, rates map[string]string) (*CurrencyServiceImpl, error) {
	base = strings.ToUpper(base)
	if _, ok := currencyPrecision[base]; !ok {
		return nil, fmt.Errorf("unsupported base currency %q", base)
	}

	s := &CurrencyServiceImpl{
		base:  base,
		rates: map[string]decimal.Decimal{base: decimal.NewFromInt(1)},
	}
	for code, raw := range rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing rate for %s: %w", code, err)
		}
		if strings.EqualFold(code, base) {
			if !rate.Equal(decimal.NewFromInt(1)) {
				return nil, fmt.Errorf("base currency %s must have rate 1, got %s", base, raw)
			}
			continue
		}
		if err := s.Update(code, rate); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Base returns the canonical accounting currency.
func (s *CurrencyServiceImpl) Base() string {
	return s.base
}

// Update sets the rate for code. The base currency cannot be re-rated.
func (s *CurrencyServiceImpl) Update(code string, rate decimal.Decimal) error {
	code = strings.ToUpper(code)
	if _, ok := currencyPrecision[code]; !ok {
		return apperror.ErrUnsupportedCurrency(code)
	}
	if code == s.base {
		return fmt.Errorf("cannot update base currency rate")
	}
	if !rate.IsPositive() {
		return fmt.Errorf("rate for %s must be positive, got %s", code, rate)
	}

	s.mu.Lock()
	s.rates[code] = rate
	s.mu.Unlock()
	return nil
}

// Supported reports whether code has both a precision and a rate.
func (s *CurrencyServiceImpl) Supported(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rates[strings.ToUpper(code)]
	return ok
}

// Currencies lists supported codes in lexical order.
func (s *CurrencyServiceImpl) Currencies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rates))
	for code := range s.rates {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Precision returns the minor-unit digits of code.
func Precision(code string) (int32, bool) {
	p, ok := currencyPrecision[strings.ToUpper(code)]
	return p, ok
}

// Rate returns how many units of to one unit of from buys.
func (s *CurrencyServiceImpl) Rate(from, to string) (decimal.Decimal, error) {
	rf, rt, err := s.pair(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return rt.DivRound(rf, 12), nil
}

// Convert converts a minor-unit amount, rounding half away from zero to
// the target currency's precision.
func (s *CurrencyServiceImpl) Convert(amount int64, from, to string) (int64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	rf, rt, err := s.pair(from, to)
	if err != nil {
		return 0, err
	}
	if from == to || amount == 0 {
		return amount, nil
	}

	pf, pt := currencyPrecision[from], currencyPrecision[to]

	// amount / 10^pf / rf * rt * 10^pt, divided once to keep full precision.
	num := decimal.NewFromInt(amount).Mul(rt).Shift(pt)
	den := rf.Shift(pf)
	out := num.DivRound(den, 0)

	if out.Abs().GreaterThan(maxInt64) {
		return 0, apperror.ErrInvalidAmount()
	}
	return out.IntPart(), nil
}

// ExactUnit returns the smallest positive amount of from that converts into
// to without rounding. Every multiple of it converts exactly too.
func (s *CurrencyServiceImpl) ExactUnit(from, to string) (int64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	rf, rt, err := s.pair(from, to)
	if err != nil {
		return 0, err
	}
	if from == to {
		return 1, nil
	}

	// Convert multiplies by num/den; reduce the fraction and the unit is
	// the reduced denominator.
	num := rt.Shift(currencyPrecision[to])
	den := rf.Shift(currencyPrecision[from])
	scale := -min(num.Exponent(), den.Exponent(), 0)
	n := num.Shift(scale).BigInt()
	d := den.Shift(scale).BigInt()

	g := new(big.Int).GCD(nil, nil, n, d)
	unit := new(big.Int).Quo(d, g)
	if !unit.IsInt64() {
		return 0, fmt.Errorf("exact unit for %s->%s overflows", from, to)
	}
	return unit.Int64(), nil
}

func (s *CurrencyServiceImpl) pair(from, to string) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rf, ok := s.rates[strings.ToUpper(from)]
	if !ok {
		return decimal.Zero, decimal.Zero, apperror.ErrUnsupportedCurrency(from)
	}
	rt, ok := s.rates[strings.ToUpper(to)]
	if !ok {
		return decimal.Zero, decimal.Zero, apperror.ErrUnsupportedCurrency(to)
	}
	return rf, rt, nil
}
