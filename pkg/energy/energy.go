// Package energy provides public SDK types for solarwatch energy records and
// anomaly detection results.
package energy

import "time"

// DateLayout is the calendar-day format used for record dates.
const DateLayout = "2006-01-02"

// AnomalyType classifies why a record was flagged.
type AnomalyType string

// Anomaly types produced by the detection methods.
const (
	AnomalyBelowAverage AnomalyType = "BELOW_AVERAGE"
	AnomalyCriticalLow  AnomalyType = "CRITICAL_LOW"
)

// Record is the total energy a solar unit generated on one day.
type Record struct {
	Date        string  `json:"date" yaml:"date"`               // YYYY-MM-DD
	TotalEnergy float64 `json:"totalEnergy" yaml:"totalEnergy"` // kWh, never negative
}

// RecordInput is a Record as supplied by a caller, before validation. A nil
// TotalEnergy means the field was missing.
type RecordInput struct {
	Date        string   `json:"date" yaml:"date"`
	TotalEnergy *float64 `json:"totalEnergy" yaml:"totalEnergy"`
}

// AnnotatedRecord is a Record plus the verdict of a detection method.
// The diagnostic fields are only set by the window-average method and are
// informational.
type AnnotatedRecord struct {
	Record
	HasAnomaly    bool        `json:"hasAnomaly"`
	AnomalyType   AnomalyType `json:"anomalyType,omitempty"`
	AnomalyReason string      `json:"anomalyReason,omitempty"`

	WindowAverage    *float64 `json:"windowAverage,omitempty"`
	DeviationPercent *float64 `json:"deviationPercent,omitempty"`
	DeviationAmount  *float64 `json:"deviationAmount,omitempty"`
}

// Stats summarizes a set of annotated records.
type Stats struct {
	TotalRecords       int           `json:"totalRecords"`
	AnomalyCount       int           `json:"anomalyCount"`
	NormalCount        int           `json:"normalCount"`
	AnomalyRate        string        `json:"anomalyRate"` // "42.9%", or "0%" for an empty set
	AnomalyRatePercent float64       `json:"anomalyRatePercent"`
	AnomalyTypes       []AnomalyType `json:"anomalyTypes"`
	WindowAverage      float64       `json:"windowAverage"`
	MinEnergy          float64       `json:"minEnergy"`
	MaxEnergy          float64       `json:"maxEnergy"`
	EnergyRange        float64       `json:"energyRange"`
	AnomalyDates       []string      `json:"anomalyDates"`
	NormalDates        []string      `json:"normalDates"`
}

// Options carries the tunable thresholds of the detection methods.
type Options struct {
	WindowThresholdPercent float64 `json:"windowThresholdPercent" mapstructure:"window_threshold_percent"`
	AbsoluteThreshold      float64 `json:"absoluteThreshold" mapstructure:"absolute_threshold"`
}

// Report is one scored window, as returned by the API and published on the bus.
type Report struct {
	RunID       string            `json:"runId"`
	UnitID      string            `json:"unitId,omitempty"`
	Method      string            `json:"method"`
	Options     Options           `json:"options"`
	Records     []AnnotatedRecord `json:"records"`
	Stats       Stats             `json:"stats"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// Window is a caller-labelled set of records, used by batch scoring.
type Window struct {
	ID      string   `json:"id"`
	Records []Record `json:"records"`
}
