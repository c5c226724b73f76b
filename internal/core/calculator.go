package core

import (
	"errors"
	"math"
)

var (
	ErrInvalidNumber = errors.New("invalid number")
	ErrInvalidTenure = errors.New("invalid tenure")
)

// Inputs are the user-controlled fields plus the derived loan amount.
type Inputs struct {
	Principal    float64 `json:"principal"`
	DownPayment  float64 `json:"down_payment"`
	LoanAmount   float64 `json:"loan_amount"`
	InterestRate float64 `json:"interest_rate"`
	TenureYears  int     `json:"tenure_years"`
}

// Snapshot is a consistent view of a calculator at one point in time.
type Snapshot struct {
	Inputs  Inputs  `json:"inputs"`
	Results Results `json:"results"`
}

// NumPayments is the number of monthly installments for the current tenure.
func (s Snapshot) NumPayments() int {
	return NumPayments(s.Inputs.TenureYears)
}

// Change is delivered to listeners after every successful mutation.
type Change struct {
	Snapshot
	// Recomputed is false when the formula was skipped and Results are carried over.
	Recomputed bool
}

// Listener observes calculator changes. It runs synchronously inside the mutator.
type Listener func(Change)

// Calculator keeps the principal / down payment / loan amount triangle consistent
// and projects the amortization results from it.
//
// A Calculator is not safe for concurrent use; callers serialise access per session.
type Calculator struct {
	limits    Limits
	inputs    Inputs
	results   Results
	listeners []Listener
}

// NewCalculator returns a calculator holding the default inputs with results already computed.
func NewCalculator(limits Limits) *Calculator {
	c := &Calculator{
		limits: limits,
		inputs: Inputs{
			Principal:    DefaultPrincipal,
			DownPayment:  DefaultDownPayment,
			LoanAmount:   DefaultPrincipal - DefaultDownPayment,
			InterestRate: DefaultInterestRate,
			TenureYears:  DefaultTenureYears,
		},
	}
	c.recompute()
	return c
}

// Restore rebuilds a calculator from a stored snapshot without recomputing,
// so results carried over by a skipped formula survive the round trip.
func Restore(limits Limits, s Snapshot) *Calculator {
	c := &Calculator{limits: limits, inputs: s.Inputs, results: s.Results}
	// LoanAmount is derived, never taken from storage
	c.inputs.LoanAmount = c.inputs.Principal - c.inputs.DownPayment
	return c
}

// OnChange registers a listener invoked after each mutation.
func (c *Calculator) OnChange(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Snapshot returns the current inputs and results.
func (c *Calculator) Snapshot() Snapshot {
	return Snapshot{Inputs: c.inputs, Results: c.results}
}

// Limits returns the control ranges the calculator was built with.
func (c *Calculator) Limits() Limits {
	return c.limits
}

// SetPrincipal sets the asset cost, pulling the down payment down if it now exceeds it.
func (c *Calculator) SetPrincipal(v float64) error {
	if !isFinite(v) {
		return ErrInvalidNumber
	}
	principal := math.Max(0, v)
	down := math.Min(c.inputs.DownPayment, principal)

	c.inputs.Principal = principal
	c.inputs.DownPayment = down
	c.inputs.LoanAmount = principal - down
	c.changed()
	return nil
}

// SetDownPayment sets the upfront amount, clamped into [0, principal].
func (c *Calculator) SetDownPayment(v float64) error {
	if !isFinite(v) {
		return ErrInvalidNumber
	}
	down := math.Max(0, math.Min(v, c.inputs.Principal))

	c.inputs.DownPayment = down
	c.inputs.LoanAmount = c.inputs.Principal - down
	c.changed()
	return nil
}

// SetInterestRate stores the nominal annual rate as given.
func (c *Calculator) SetInterestRate(v float64) error {
	if !isFinite(v) {
		return ErrInvalidNumber
	}
	c.inputs.InterestRate = v
	c.changed()
	return nil
}

// SetTenure selects the loan term; years must be one of the configured tenures.
func (c *Calculator) SetTenure(years int) error {
	if !c.limits.AllowsTenure(years) {
		return ErrInvalidTenure
	}
	c.inputs.TenureYears = years
	c.changed()
	return nil
}

// Reset restores the default inputs and recomputes.
func (c *Calculator) Reset() {
	fresh := NewCalculator(c.limits)
	c.inputs = fresh.inputs
	c.results = fresh.results
	c.notify(true)
}

func (c *Calculator) changed() {
	c.notify(c.recompute())
}

// recompute refreshes the results; on a skipped formula the previous results stay.
func (c *Calculator) recompute() bool {
	res, ok := Calculate(c.inputs.LoanAmount, c.inputs.InterestRate, c.inputs.TenureYears)
	if ok {
		c.results = res
	}
	return ok
}

func (c *Calculator) notify(recomputed bool) {
	change := Change{Snapshot: c.Snapshot(), Recomputed: recomputed}
	for _, l := range c.listeners {
		l(change)
	}
}
