package chart

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// SVGRenderer draws the pie on the server with go-chart.
type SVGRenderer struct {
	legend *template.Template
}

var legendTmpl = template.Must(template.New("legend").Parse(
	`<ul class="chart-legend chart-legend-{{.Position}}">` +
		`{{range .Items}}<li><span class="swatch" style="background:{{.Color}}"></span>{{.Label}}</li>{{end}}` +
		`</ul>`))

func NewSVGRenderer() *SVGRenderer {
	return &SVGRenderer{legend: legendTmpl}
}

func (r *SVGRenderer) Render(ds Dataset, opts Options) (template.HTML, error) {
	if err := ds.Validate(); err != nil {
		return "", err
	}

	var values []gochart.Value
	for i, v := range ds.Values {
		// zero slices make go-chart emit empty arcs
		if v == 0 {
			continue
		}
		values = append(values, gochart.Value{
			Label: ds.Labels[i],
			Value: v,
			Style: gochart.Style{
				FillColor:   drawing.ColorFromHex(strings.TrimPrefix(opts.Colors[i], "#")),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: float64(opts.BorderWidth),
			},
		})
	}

	pie := gochart.PieChart{
		Width:  opts.Width,
		Height: opts.Height,
		Values: values,
	}

	var svg bytes.Buffer
	if err := pie.Render(gochart.SVG, &svg); err != nil {
		return "", fmt.Errorf("render pie: %w", err)
	}

	type item struct{ Label, Color string }
	data := struct {
		Position string
		Items    []item
	}{Position: opts.LegendPosition}
	for i := range ds.Labels {
		data.Items = append(data.Items, item{Label: ds.Labels[i], Color: opts.Colors[i]})
	}

	var legend bytes.Buffer
	if err := r.legend.Execute(&legend, data); err != nil {
		return "", fmt.Errorf("render legend: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(`<figure class="chart chart-svg">`)
	out.Write(svg.Bytes())
	out.Write(legend.Bytes())
	out.WriteString(`</figure>`)
	return template.HTML(out.String()), nil
}
