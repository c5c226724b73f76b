// Package chart draws the principal vs interest breakdown of a loan.
//
// Renderers are external collaborators: the calculator only hands them a
// two-slice dataset. SafeRender isolates rendering failures so that a broken
// chart never affects the calculator state.
package chart

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"math"

	"emicalc/internal/core"
	applog "emicalc/internal/log"
)

var ErrEmptyDataset = errors.New("chart dataset has nothing to draw")

// Fallback is shown in place of the chart when rendering fails.
const Fallback template.HTML = `<div class="chart-error" role="img" aria-label="Chart unavailable">Chart unavailable</div>`

// Dataset is the two-category input of the pie chart.
type Dataset struct {
	Labels [2]string
	Values [2]float64
}

// DatasetFor builds the pie dataset from a calculator snapshot: loan amount vs total interest.
func DatasetFor(s core.Snapshot) Dataset {
	return Dataset{
		Labels: [2]string{"Principal", "Interest"},
		Values: [2]float64{s.Inputs.LoanAmount, s.Results.TotalInterest},
	}
}

// Total returns the sum of both slices.
func (d Dataset) Total() float64 {
	return d.Values[0] + d.Values[1]
}

// Validate rejects datasets no pie can represent.
func (d Dataset) Validate() error {
	for i, v := range d.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("slice %q has invalid value %v", d.Labels[i], v)
		}
	}
	if d.Total() <= 0 {
		return ErrEmptyDataset
	}
	return nil
}

// Options carries the rendering configuration.
type Options struct {
	Colors              [2]string
	LegendPosition      string
	MaintainAspectRatio bool
	BorderWidth         int
	Width               int
	Height              int
}

// DefaultOptions mirrors the page theme.
func DefaultOptions() Options {
	return Options{
		Colors:              [2]string{"#6366f1", "#f97316"},
		LegendPosition:      "bottom",
		MaintainAspectRatio: false,
		BorderWidth:         0,
		Width:               320,
		Height:              320,
	}
}

// Renderer turns a dataset into an HTML fragment.
type Renderer interface {
	Render(ds Dataset, opts Options) (template.HTML, error)
}

// Kinds of renderer selectable through configuration.
const (
	KindSVG     = "svg"
	KindChartJS = "chartjs"
)

// New returns the renderer registered under kind.
func New(kind string) (Renderer, error) {
	switch kind {
	case KindSVG, "":
		return NewSVGRenderer(), nil
	case KindChartJS:
		return NewChartJSRenderer("loan-chart"), nil
	default:
		return nil, fmt.Errorf("unknown chart renderer %q", kind)
	}
}

// SafeRender renders the dataset, substituting Fallback on error or panic.
func SafeRender(ctx context.Context, r Renderer, ds Dataset, opts Options) (out template.HTML) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentChart)
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "Chart renderer panicked", "panic", fmt.Sprint(rec))
			out = Fallback
		}
	}()

	if r == nil {
		return Fallback
	}
	html, err := r.Render(ds, opts)
	if err != nil {
		logger.WarnContext(ctx, "Chart render failed", applog.FieldError, err,
			"principal", ds.Values[0], "interest", ds.Values[1])
		return Fallback
	}
	return html
}
