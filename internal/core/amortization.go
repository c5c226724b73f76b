package core

import (
	"math"

	"github.com/shopspring/decimal"
)

// Results holds the derived figures of an amortized loan, rounded to cents.
type Results struct {
	MonthlyPayment float64 `json:"monthly_payment"`
	TotalPayment   float64 `json:"total_payment"`
	TotalInterest  float64 `json:"total_interest"`
}

// MaxTermYears bounds the term accepted by Calculate.
const MaxTermYears = 100

// NumPayments converts a term in years to the number of monthly installments.
func NumPayments(termYears int) int {
	return termYears * 12
}

// MonthlyRate converts a nominal annual percentage to a per-month fraction.
func MonthlyRate(annualRatePercent float64) float64 {
	return annualRatePercent / 100 / 12
}

// Calculate applies the equated monthly installment formula.
//
// The second return value is false when the formula is not applicable
// (non-positive loan amount, rate or term, or a term above MaxTermYears) or
// would not produce finite figures. Callers are expected to keep their previous results in that case.
//
// Totals are derived from the unrounded installment and rounded separately,
// so TotalPayment may differ from MonthlyPayment*n by up to n half-cents.
func Calculate(loanAmount, annualRatePercent float64, termYears int) (Results, bool) {
	if termYears <= 0 || termYears > MaxTermYears {
		return Results{}, false
	}
	r := MonthlyRate(annualRatePercent)
	n := NumPayments(termYears)

	if !(loanAmount > 0 && r > 0) {
		return Results{}, false
	}

	growth := math.Pow(1+r, float64(n))
	emi := loanAmount * r * growth / (growth - 1)
	total := emi * float64(n)
	interest := total - loanAmount

	if !isFinite(emi) || !isFinite(total) || !isFinite(interest) {
		return Results{}, false
	}

	return Results{
		MonthlyPayment: round2(emi),
		TotalPayment:   round2(total),
		TotalInterest:  round2(interest),
	}, true
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
