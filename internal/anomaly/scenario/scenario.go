// Package scenario bundles named sample windows of daily production together
// with the number of days each detection method flags at default thresholds.
package scenario

import (
	"slices"

	"github.com/HerbHall/solarwatch/pkg/energy"
)

// Scenario is a labelled sample window.
type Scenario struct {
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Records     []energy.Record `json:"records"`

	// Expected anomaly counts at default options.
	WindowAverageAnomalies int `json:"windowAverageAnomalies"`
	AbsoluteAnomalies      int `json:"absoluteAnomalies"`
}

var firstWeek = []string{
	"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04",
	"2024-01-05", "2024-01-06", "2024-01-07",
}

var weeklySamples = []string{
	"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22",
	"2024-01-29", "2024-02-05", "2024-02-12",
}

func series(dates []string, values ...float64) []energy.Record {
	out := make([]energy.Record, len(values))
	for i, v := range values {
		out[i] = energy.Record{Date: dates[i], TotalEnergy: v}
	}
	return out
}

var scenarios = []Scenario{
	{
		Slug:                   "panel-failure",
		Name:                   "Panel failure",
		Description:            "Production drops to zero after three normal days.",
		Records:                series(firstWeek, 35.2, 34.8, 36.1, 0, 0, 0, 0),
		WindowAverageAnomalies: 4,
		AbsoluteAnomalies:      4,
	},
	{
		Slug:        "gradual-degradation",
		Name:        "Gradual degradation",
		Description: "Output declines a little every day; no single day stands out.",
		Records:     series(firstWeek, 40.0, 38.5, 37.2, 35.8, 34.1, 32.5, 31.0),
	},
	{
		Slug:                   "sensor-error",
		Name:                   "Sensor error",
		Description:            "One impossible reading inflates the average so every other day looks low.",
		Records:                series(firstWeek, 33.5, 34.2, 999.9, 32.8, 33.1, 34.0, 33.7),
		WindowAverageAnomalies: 6,
	},
	{
		Slug:                   "weather-variation",
		Name:                   "Weather variation",
		Description:            "Cloudy days interleaved with clear ones.",
		Records:                series(firstWeek, 38.0, 22.5, 15.3, 25.8, 37.2, 18.9, 36.5),
		WindowAverageAnomalies: 1,
	},
	{
		Slug:        "new-shading",
		Name:        "New shading",
		Description: "A step down to a lower plateau, e.g. a new obstruction.",
		Records:     series(firstWeek, 40.0, 39.5, 38.8, 25.0, 24.5, 25.2, 24.8),
	},
	{
		Slug:                   "intermittent-failure",
		Name:                   "Intermittent failure",
		Description:            "The inverter drops out on some days.",
		Records:                series(firstWeek, 35.0, 0, 34.5, 0, 35.2, 34.8, 0),
		WindowAverageAnomalies: 3,
		AbsoluteAnomalies:      3,
	},
	{
		Slug:        "panel-cleaning",
		Name:        "Panel cleaning",
		Description: "A step up after the panels were cleaned.",
		Records:     series(firstWeek, 28.0, 27.5, 26.8, 38.5, 38.2, 37.9, 38.1),
	},
	{
		Slug:                   "outlier",
		Name:                   "Single outlier",
		Description:            "One bad day in an otherwise steady week.",
		Records:                series(firstWeek, 35.0, 34.5, 36.0, 8.5, 35.5, 34.8, 35.2),
		WindowAverageAnomalies: 1,
	},
	{
		Slug:        "normal-operation",
		Name:        "Normal operation",
		Description: "A steady week.",
		Records:     series(firstWeek, 35.2, 34.8, 36.1, 35.5, 34.9, 35.7, 35.3),
	},
	{
		Slug:        "seasonal-pattern",
		Name:        "Seasonal pattern",
		Description: "Weekly samples rising into spring.",
		Records:     series(weeklySamples, 20.0, 22.5, 25.0, 27.5, 30.0, 32.5, 35.0),
	},
}

// All returns every scenario in a fixed order. Callers own the result.
func All() []Scenario {
	out := make([]Scenario, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.clone()
	}
	return out
}

// Lookup returns the scenario with the given slug.
func Lookup(slug string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.Slug == slug {
			return s.clone(), true
		}
	}
	return Scenario{}, false
}

func (s Scenario) clone() Scenario {
	s.Records = slices.Clone(s.Records)
	return s
}
