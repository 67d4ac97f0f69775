package domainmessage

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// AmountUnit is the number of Amount base units per whole coin, the same
// fixed-point convention btcutil.Amount uses for satoshis (this ledger
// calls the base unit a "unit" rather than a satoshi).
const AmountUnit = 1e8

// Amount represents a quantity of the ledger's currency as a signed
// fixed-point integer scaled by AmountUnit. Using a scaled integer
// rather than a floating point type keeps balance arithmetic exact.
type Amount int64

// NewAmount converts a floating point value in whole coins to an Amount,
// rejecting values that would overflow or lose precision absurdly.
func NewAmount(f float64) (Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Errorf("invalid amount %v", f)
	}
	round := math.Round(f * AmountUnit)
	if round < math.MinInt64 || round > math.MaxInt64 {
		return 0, errors.Errorf("amount %v overflows Amount", f)
	}
	return Amount(round), nil
}

// ToCoin returns the amount as a floating point number of whole coins.
func (a Amount) ToCoin() float64 {
	return float64(a) / AmountUnit
}

// String renders the amount in whole-coin decimal form.
func (a Amount) String() string {
	return strconv.FormatFloat(a.ToCoin(), 'f', -1, 64)
}

// IsNegative reports whether the amount is less than zero.
func (a Amount) IsNegative() bool {
	return a < 0
}
