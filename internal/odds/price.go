// Package odds converts quoted betting prices into decimal prices and inverse odds.
package odds

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyPrice indicates a blank price string
	ErrEmptyPrice = errors.New("empty price")

	// ErrMalformedPrice indicates a price that matches no supported format
	ErrMalformedPrice = errors.New("malformed price")

	// ErrPriceBelowOne indicates a decimal price below 1
	ErrPriceBelowOne = errors.New("decimal price must be >= 1")
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ParsePrice converts a quoted price to decimal odds.
//
// Supported formats:
//
//	"2.5"          decimal
//	"5/2", "evens" fractional
//	"+150", "-200" American
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmptyPrice
	}

	var (
		price decimal.Decimal
		err   error
	)
	switch lower := strings.ToLower(s); {
	case lower == "evens" || lower == "evs" || lower == "even":
		price = decimal.NewFromInt(2)
	case strings.Contains(s, "/"):
		price, err = parseFractional(s)
	case strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-"):
		price, err = parseAmerican(s)
	default:
		price, err = decimal.NewFromString(s)
		if err != nil {
			err = fmt.Errorf("%w: %q", ErrMalformedPrice, s)
		}
	}
	if err != nil {
		return decimal.Zero, err
	}

	if price.LessThan(one) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrPriceBelowOne, s)
	}
	return price, nil
}

// parseFractional handles UK style prices such as "11/4".
func parseFractional(s string) (decimal.Decimal, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedPrice, s)
	}

	num, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedPrice, s)
	}
	den, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil || !den.IsPositive() || num.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedPrice, s)
	}

	return num.Div(den).Add(one), nil
}

// parseAmerican handles moneyline prices. +150 pays 150 on 100 staked and
// -200 needs 200 staked to win 100.
func parseAmerican(s string) (decimal.Decimal, error) {
	line, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedPrice, s)
	}
	if line.Abs().LessThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: American odds must be at least 100 in magnitude, got %q", ErrMalformedPrice, s)
	}

	if line.IsPositive() {
		return line.Div(hundred).Add(one), nil
	}
	return hundred.Div(line.Abs()).Add(one), nil
}

// ParsePrices parses every quoted price and returns decimal odds as floats.
func ParsePrices(quoted []string) ([]float64, error) {
	prices := make([]float64, len(quoted))
	for i, q := range quoted {
		price, err := ParsePrice(q)
		if err != nil {
			return nil, fmt.Errorf("price %d: %w", i, err)
		}
		prices[i] = price.InexactFloat64()
	}
	return prices, nil
}
