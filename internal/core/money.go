package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumber converts a raw control value to a float.
//
// Both dot and comma decimal separators are accepted. Empty, non-numeric
// and non-finite values are rejected with ErrInvalidNumber instead of being
// coerced to zero.
func ParseNumber(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidNumber
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(v) {
		return 0, ErrInvalidNumber
	}
	return v, nil
}

// ParseTenure converts a raw selector value to whole years.
func ParseTenure(raw string) (int, error) {
	years, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrInvalidTenure
	}
	return years, nil
}

// FormatMoney renders an amount with two decimals, e.g. "$75.48".
func FormatMoney(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// FormatAmount renders a control value without padding decimals, e.g. "$5000".
func FormatAmount(v float64) string {
	return "$" + decimal.NewFromFloat(v).Round(2).String()
}

// FormatRate renders a rate for labels, e.g. "5" or "7.5".
func FormatRate(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}
