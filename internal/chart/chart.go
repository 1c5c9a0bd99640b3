// Package chart renders scored production windows as PNG line charts.
package chart

import (
	"errors"
	"fmt"
	"time"

	charts "github.com/vicanso/go-charts/v2"

	"github.com/HerbHall/solarwatch/pkg/energy"
)

// ErrEmptyWindow is returned when there is nothing to draw.
var ErrEmptyWindow = errors.New("chart: no records to render")

// Style controls the rendered image.
type Style struct {
	Theme  string // go-charts theme name: "light", "dark", "grafana", "ant"
	Width  int
	Height int
}

// DefaultStyle matches the dark dashboard.
func DefaultStyle() Style {
	return Style{Theme: "dark", Width: 1000, Height: 400}
}

// Render draws daily production against the window baseline. The baseline is
// each record's window average when present (window-average method), and the
// mean production of the window otherwise. Records are drawn in the order
// given, which callers keep sorted by date.
func Render(records []energy.AnnotatedRecord, title string, style Style) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrEmptyWindow
	}
	if style.Width <= 0 || style.Height <= 0 {
		def := DefaultStyle()
		style.Width, style.Height = def.Width, def.Height
	}
	if style.Theme == "" {
		style.Theme = DefaultStyle().Theme
	}

	mean := 0.0
	for _, r := range records {
		mean += r.TotalEnergy
	}
	mean /= float64(len(records))

	labels := make([]string, len(records))
	production := make([]float64, len(records))
	baseline := make([]float64, len(records))
	for i, r := range records {
		labels[i] = label(r.Date)
		production[i] = r.TotalEnergy
		baseline[i] = mean
		if r.WindowAverage != nil {
			baseline[i] = *r.WindowAverage
		}
	}

	p, err := charts.LineRender(
		[][]float64{production, baseline},
		charts.PNGTypeOption(),
		charts.TitleTextOptionFunc(title),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc([]string{"Production (kWh)", "Baseline (kWh)"}, charts.PositionRight),
		charts.ThemeOptionFunc(style.Theme),
		charts.WidthOptionFunc(style.Width),
		charts.HeightOptionFunc(style.Height),
		charts.PaddingOptionFunc(charts.Box{Top: 20, Right: 20, Bottom: 20, Left: 20}),
	)
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf, nil
}

// label shortens YYYY-MM-DD to "Jan 2"; other strings are kept.
func label(date string) string {
	t, err := time.Parse(energy.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2")
}
