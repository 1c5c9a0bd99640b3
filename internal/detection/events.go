package detection

import "github.com/HerbHall/solarwatch/pkg/energy"

// TopicAnomaliesDetected is published when scoring a unit flags at least one day.
const TopicAnomaliesDetected = "detection.anomalies.detected"

// AnomaliesDetectedEvent is the payload of TopicAnomaliesDetected.
type AnomaliesDetectedEvent struct {
	RunID        string               `json:"runId"`
	UnitID       string               `json:"unitId"`
	Method       string               `json:"method"`
	AnomalyCount int                  `json:"anomalyCount"`
	AnomalyDates []string             `json:"anomalyDates"`
	AnomalyTypes []energy.AnomalyType `json:"anomalyTypes"`
}
