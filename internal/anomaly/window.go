package anomaly

import (
	"fmt"
	"slices"
	"strings"

	"github.com/HerbHall/solarwatch/pkg/energy"
)

// SortByDate returns a copy of records ordered by ascending date.
// YYYY-MM-DD keys sort chronologically as strings; records with equal keys
// keep their input order. The input slice is not modified.
func SortByDate(records []energy.Record) []energy.Record {
	sorted := slices.Clone(records)
	if sorted == nil {
		sorted = []energy.Record{}
	}
	slices.SortStableFunc(sorted, func(a, b energy.Record) int {
		return strings.Compare(a.Date, b.Date)
	})
	return sorted
}

// WindowAverage returns the arithmetic mean of TotalEnergy over records,
// or 0 for an empty window.
func WindowAverage(records []energy.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range records {
		total += r.TotalEnergy
	}
	return total / float64(len(records))
}

// DetectWindowAverage flags every record whose energy falls more than
// thresholdPercent below the mean of the whole window. The window is exactly
// the records passed in. Every output record carries the window average and
// its own deviation, flagged or not.
//
// A window whose average is zero has no baseline to compare against: all
// records are returned unflagged with zero deviation.
func DetectWindowAverage(records []energy.Record, thresholdPercent float64) []energy.AnnotatedRecord {
	out := make([]energy.AnnotatedRecord, 0, len(records))
	if len(records) == 0 {
		return out
	}

	avg := WindowAverage(records)

	for _, r := range records {
		var deviationPercent, deviationAmount float64
		if avg > 0 {
			deviationAmount = avg - r.TotalEnergy
			deviationPercent = deviationAmount / avg * 100
		}

		a := energy.AnnotatedRecord{
			Record:           r,
			WindowAverage:    float64Ptr(avg),
			DeviationPercent: float64Ptr(deviationPercent),
			DeviationAmount:  float64Ptr(deviationAmount),
		}
		if avg > 0 && deviationPercent > thresholdPercent {
			a.HasAnomaly = true
			a.AnomalyType = energy.AnomalyBelowAverage
			a.AnomalyReason = fmt.Sprintf("%.1f%% below window average (%.1f kWh)", deviationPercent, avg)
		}
		out = append(out, a)
	}
	return out
}

func float64Ptr(f float64) *float64 {
	return &f
}

// DetectAbsoluteThreshold flags every record that produced less than
// minimumThreshold kWh, independent of the rest of the window.
func DetectAbsoluteThreshold(records []energy.Record, minimumThreshold float64) []energy.AnnotatedRecord {
	out := make([]energy.AnnotatedRecord, 0, len(records))
	for _, r := range records {
		a := energy.AnnotatedRecord{Record: r}
		if r.TotalEnergy < minimumThreshold {
			a.HasAnomaly = true
			a.AnomalyType = energy.AnomalyCriticalLow
			a.AnomalyReason = fmt.Sprintf("Production only %.1f kWh (minimum: %g kWh)", r.TotalEnergy, minimumThreshold)
		}
		out = append(out, a)
	}
	return out
}
