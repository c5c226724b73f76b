package chart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
)

// ChartJSRenderer emits a canvas carrying a Chart.js configuration;
// static/chart.js turns it into a pie in the browser.
type ChartJSRenderer struct {
	canvasID string
	tmpl     *template.Template
}

var canvasTmpl = template.Must(template.New("canvas").Parse(
	`<div class="chart chart-canvas"><canvas id="{{.ID}}" data-chart="{{.Config}}"></canvas></div>`))

func NewChartJSRenderer(canvasID string) *ChartJSRenderer {
	return &ChartJSRenderer{canvasID: canvasID, tmpl: canvasTmpl}
}

type chartJSDataset struct {
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
	BorderWidth     int       `json:"borderWidth"`
}

type chartJSConfig struct {
	Type string `json:"type"`
	Data struct {
		Labels   []string         `json:"labels"`
		Datasets []chartJSDataset `json:"datasets"`
	} `json:"data"`
	Options struct {
		Plugins struct {
			Legend struct {
				Position string `json:"position"`
			} `json:"legend"`
		} `json:"plugins"`
		MaintainAspectRatio bool `json:"maintainAspectRatio"`
	} `json:"options"`
}

// Config builds the Chart.js configuration object for ds.
func (r *ChartJSRenderer) Config(ds Dataset, opts Options) ([]byte, error) {
	var cfg chartJSConfig
	cfg.Type = "pie"
	cfg.Data.Labels = ds.Labels[:]
	cfg.Data.Datasets = []chartJSDataset{{
		Data:            ds.Values[:],
		BackgroundColor: opts.Colors[:],
		BorderWidth:     opts.BorderWidth,
	}}
	cfg.Options.Plugins.Legend.Position = opts.LegendPosition
	cfg.Options.MaintainAspectRatio = opts.MaintainAspectRatio
	return json.Marshal(cfg)
}

func (r *ChartJSRenderer) Render(ds Dataset, opts Options) (template.HTML, error) {
	if err := ds.Validate(); err != nil {
		return "", err
	}
	cfg, err := r.Config(ds, opts)
	if err != nil {
		return "", fmt.Errorf("marshal chart config: %w", err)
	}

	var out bytes.Buffer
	err = r.tmpl.Execute(&out, struct {
		ID     string
		Config string
	}{ID: r.canvasID, Config: string(cfg)})
	if err != nil {
		return "", fmt.Errorf("render canvas: %w", err)
	}
	return template.HTML(out.String()), nil
}
