package core

import (
	"math"
	"slices"
)

// Session defaults shown on first load.
const (
	DefaultPrincipal    = 5000.0
	DefaultDownPayment  = 1000.0
	DefaultInterestRate = 5.0
	DefaultTenureYears  = 5
)

// Limits describes the ranges of the input controls.
type Limits struct {
	PrincipalMax    float64
	PrincipalStep   float64
	DownPaymentStep float64
	RateMin         float64
	RateMax         float64
	RateStep        float64
	Tenures         []int
}

// DefaultLimits returns the ranges used by the calculator page.
func DefaultLimits() Limits {
	return Limits{
		PrincipalMax:    100000,
		PrincipalStep:   1000,
		DownPaymentStep: 1000,
		RateMin:         2,
		RateMax:         20,
		RateStep:        0.1,
		Tenures:         []int{5, 10, 15, 20},
	}
}

// AllowsTenure reports whether years is one of the selectable terms.
func (l Limits) AllowsTenure(years int) bool {
	return slices.Contains(l.Tenures, years)
}

// ClampPrincipal snaps v onto the principal slider: [0, PrincipalMax] in PrincipalStep increments.
func (l Limits) ClampPrincipal(v float64) float64 {
	return snap(clamp(v, 0, l.PrincipalMax), l.PrincipalStep, 0, l.PrincipalMax)
}

// ClampDownPayment snaps v onto the down payment slider, whose maximum is the current principal.
func (l Limits) ClampDownPayment(v, principal float64) float64 {
	return snap(clamp(v, 0, principal), l.DownPaymentStep, 0, principal)
}

// ClampRate snaps v onto the interest rate slider.
func (l Limits) ClampRate(v float64) float64 {
	return snap(clamp(v, l.RateMin, l.RateMax), l.RateStep, l.RateMin, l.RateMax)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// snap rounds v to the nearest multiple of step counted from lo, staying inside [lo, hi].
func snap(v, step, lo, hi float64) float64 {
	if step <= 0 {
		return v
	}
	snapped := lo + math.Round((v-lo)/step)*step
	// 0.1 steps accumulate binary noise; keep the slider's precision
	snapped = round2(snapped)
	return clamp(snapped, lo, hi)
}
