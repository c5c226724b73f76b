package core

import (
	"math"
	"testing"
)

func TestCalculateDefaults(t *testing.T) {
	res, ok := Calculate(4000, 5, 5)
	if !ok {
		t.Fatalf("expected formula to apply")
	}
	want := Results{MonthlyPayment: 75.48, TotalPayment: 4529.10, TotalInterest: 529.10}
	if res != want {
		t.Fatalf("got %+v, want %+v", res, want)
	}
}

func TestCalculateGuard(t *testing.T) {
	cases := []struct {
		name  string
		loan  float64
		rate  float64
		years int
	}{
		{"zero loan", 0, 5, 5},
		{"negative loan", -100, 5, 5},
		{"zero rate", 4000, 0, 5},
		{"negative rate", 4000, -3, 5},
		{"zero term", 4000, 5, 0},
		{"negative term", 4000, 5, -1},
		{"nan loan", math.NaN(), 5, 5},
		{"nan rate", 4000, math.NaN(), 5},
		{"vanishing rate", 4000, 1e-300, 5},
		{"term above max", 4000, 5, MaxTermYears + 1},
		{"term overflowing payment count", 4000, 5, math.MaxInt/12 + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := Calculate(tc.loan, tc.rate, tc.years)
			if ok {
				t.Fatalf("expected guard to skip, got %+v", res)
			}
			if res != (Results{}) {
				t.Fatalf("expected zero results on skip, got %+v", res)
			}
		})
	}
}

func TestCalculateMaxTerm(t *testing.T) {
	res, ok := Calculate(4000, 5, MaxTermYears)
	if !ok {
		t.Fatal("expected the longest term to be accepted")
	}
	if res.MonthlyPayment <= 0 || res.TotalPayment <= 4000 {
		t.Errorf("unexpected results %+v", res)
	}
}

func TestCalculateConsistency(t *testing.T) {
	cases := []struct {
		loan  float64
		rate  float64
		years int
	}{
		{4000, 5, 5},
		{1000, 2, 20},
		{99000, 20, 15},
		{12345, 7.3, 10},
		{100000, 12, 20},
	}
	for _, tc := range cases {
		res, ok := Calculate(tc.loan, tc.rate, tc.years)
		if !ok {
			t.Fatalf("%+v: expected formula to apply", tc)
		}
		n := float64(NumPayments(tc.years))
		if d := math.Abs(res.TotalPayment - res.TotalInterest - tc.loan); d > 0.01 {
			t.Fatalf("%+v: total-interest differs from loan by %f", tc, d)
		}
		// the monthly value is rounded before multiplying, so allow n half-cents
		if d := math.Abs(res.TotalPayment - res.MonthlyPayment*n); d > n*0.005+0.005 {
			t.Fatalf("%+v: total differs from monthly*n by %f", tc, d)
		}
		if res.MonthlyPayment <= 0 || res.TotalInterest <= 0 {
			t.Fatalf("%+v: expected positive outputs, got %+v", tc, res)
		}
	}
}

func TestCalculateKnownValue(t *testing.T) {
	res, ok := Calculate(100000, 12, 20)
	if !ok {
		t.Fatalf("expected formula to apply")
	}
	if res.MonthlyPayment != 1101.09 {
		t.Fatalf("monthly = %v, want 1101.09", res.MonthlyPayment)
	}
	if res.TotalPayment != 264260.67 {
		t.Fatalf("total = %v, want 264260.67", res.TotalPayment)
	}
	if res.TotalInterest != 164260.67 {
		t.Fatalf("interest = %v, want 164260.67", res.TotalInterest)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in, out float64
	}{
		{1.005, 1.01},
		{1.004, 1},
		{-1.005, -1.01},
		{529.096074562638, 529.1},
		{0, 0},
	}
	for _, tc := range cases {
		if got := round2(tc.in); got != tc.out {
			t.Fatalf("round2(%v) = %v, want %v", tc.in, got, tc.out)
		}
	}
}
