// Package amount provides the fixed-point integer arithmetic used for all
// value calculations. Amounts are unsigned integers in minor units; every
// division floors.
package amount

import (
	"errors"
	"math/big"
	"strconv"
)

// Amount is a quantity of an asset in minor units.
type Amount uint64

const (
	// BpsDenominator converts basis points to a fraction (10000 bps = 100%).
	BpsDenominator = 10_000

	// PercentDenominator converts whole percents to a fraction.
	PercentDenominator = 100

	// MaxAmount is the largest representable amount.
	MaxAmount = Amount(^uint64(0))
)

// ErrOverflow is returned when an arithmetic result exceeds MaxAmount.
var ErrOverflow = errors.New("amount overflow")

// New creates an Amount from a raw minor-unit count.
func New(v uint64) Amount {
	return Amount(v)
}

// Uint64 returns the raw minor-unit count.
func (a Amount) Uint64() uint64 {
	return uint64(a)
}

// IsZero returns true for the zero amount.
func (a Amount) IsZero() bool {
	return a == 0
}

// Add returns a+b, failing on overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, failing if b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, errors.New("amount underflow")
	}
	return a - b, nil
}

// TaxAt returns floor(a × rateBps / 10000), the levy charged on a at the
// given basis-point rate.
func (a Amount) TaxAt(rateBps uint32) Amount {
	return MulDiv(a, uint64(rateBps), BpsDenominator)
}

// PercentShare returns floor(a × pct / 100).
func (a Amount) PercentShare(pct uint32) Amount {
	return MulDiv(a, uint64(pct), PercentDenominator)
}

// MulDiv returns floor(a × num / den) without intermediate overflow.
// A 128-bit intermediate is required: uint64 products of large amounts and
// basis-point numerators do not fit in 64 bits.
func MulDiv(a Amount, num, den uint64) Amount {
	if den == 0 {
		panic("amount: division by zero")
	}
	if a == 0 || num == 0 {
		return 0
	}
	prod := new(big.Int).Mul(
		new(big.Int).SetUint64(uint64(a)),
		new(big.Int).SetUint64(num),
	)
	prod.Quo(prod, new(big.Int).SetUint64(den))
	if !prod.IsUint64() {
		// Caller rates are capped well below the denominator, so the
		// quotient fits whenever the inputs were valid amounts.
		return MaxAmount
	}
	return Amount(prod.Uint64())
}

// String returns the decimal minor-unit representation.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}
