// Package anomaly scores daily solar energy production windows against simple
// baselines. All functions are pure: they never modify their input and hold
// no state between calls.
package anomaly

import (
	"fmt"
	"math"
	"slices"

	"github.com/HerbHall/solarwatch/pkg/energy"
)

// Detect validates records and options, sorts the records by date and
// annotates them with the selected method.
func Detect(records []energy.Record, method Method, opts energy.Options) ([]energy.AnnotatedRecord, error) {
	if err := ValidateRecords(records); err != nil {
		return nil, err
	}
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}

	sorted := SortByDate(records)

	switch method {
	case MethodWindowAverage:
		return DetectWindowAverage(sorted, opts.WindowThresholdPercent), nil
	case MethodAbsolute:
		return DetectAbsoluteThreshold(sorted, opts.AbsoluteThreshold), nil
	default:
		return nil, fmt.Errorf("%w: unknown detection method %q", ErrInvalidArgument, method)
	}
}

// ComputeStats summarizes annotated records. An empty input yields zero
// counts, an anomaly rate of "0%" and empty date lists.
func ComputeStats(records []energy.AnnotatedRecord) energy.Stats {
	stats := energy.Stats{
		AnomalyRate:  "0%",
		AnomalyTypes: []energy.AnomalyType{},
		AnomalyDates: []string{},
		NormalDates:  []string{},
	}
	if len(records) == 0 {
		return stats
	}

	minEnergy := math.Inf(1)
	maxEnergy := math.Inf(-1)
	total := 0.0
	types := make(map[energy.AnomalyType]struct{})

	for _, r := range records {
		total += r.TotalEnergy
		minEnergy = math.Min(minEnergy, r.TotalEnergy)
		maxEnergy = math.Max(maxEnergy, r.TotalEnergy)

		date := r.Date
		if date == "" {
			date = "Unknown"
		}
		if r.HasAnomaly {
			stats.AnomalyCount++
			stats.AnomalyDates = append(stats.AnomalyDates, date)
			if r.AnomalyType != "" {
				types[r.AnomalyType] = struct{}{}
			}
			continue
		}
		stats.NormalDates = append(stats.NormalDates, date)
	}

	for t := range types {
		stats.AnomalyTypes = append(stats.AnomalyTypes, t)
	}
	slices.Sort(stats.AnomalyTypes)

	n := len(records)
	stats.TotalRecords = n
	stats.NormalCount = n - stats.AnomalyCount
	stats.AnomalyRatePercent = float64(stats.AnomalyCount) / float64(n) * 100
	stats.AnomalyRate = fmt.Sprintf("%.1f%%", stats.AnomalyRatePercent)
	stats.WindowAverage = total / float64(n)
	stats.MinEnergy = minEnergy
	stats.MaxEnergy = maxEnergy
	stats.EnergyRange = maxEnergy - minEnergy
	return stats
}
