package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of one whole unit.
const Decimals = 18

// parseAmount converts a human amount ("1.5") into base units. With raw set the
// input is taken as an integer count of base units.
func parseAmount(input string, raw bool) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return big.NewInt(0), nil
	}
	if raw {
		v, ok := new(big.Int).SetString(input, 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("invalid base unit amount %q", input)
		}
		return v, nil
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", input, err)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative: %s", input)
	}
	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", input, Decimals)
	}
	return scaled.BigInt(), nil
}

// formatAmount renders base units as whole units.
func formatAmount(baseUnits string) string {
	v, ok := new(big.Int).SetString(baseUnits, 10)
	if !ok {
		return baseUnits
	}
	return decimal.NewFromBigInt(v, -Decimals).String()
}
