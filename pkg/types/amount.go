package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ErrPrecision is returned when an amount has more fractional digits than
// the asset supports.
var ErrPrecision = errors.New("amount exceeds asset precision")

// ToSubunits converts a human amount into the asset's smallest unit.
func ToSubunits(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	shifted := amount.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s with %d decimals", ErrPrecision, amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromSubunits converts an amount in the asset's smallest unit into a human
// amount.
func FromSubunits(v *big.Int, decimals uint8) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -int32(decimals))
}

// ParseAmount parses a decimal string such as "1.25".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
