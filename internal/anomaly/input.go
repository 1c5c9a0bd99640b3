package anomaly

import "github.com/HerbHall/solarwatch/pkg/energy"

// FromInput converts caller-supplied records and validates them as a batch.
func FromInput(in []energy.RecordInput) ([]energy.Record, error) {
	out := make([]energy.Record, len(in))
	for i, r := range in {
		if r.TotalEnergy == nil {
			return nil, &RecordError{Index: i, Date: r.Date, Reason: "totalEnergy is required"}
		}
		out[i] = energy.Record{Date: r.Date, TotalEnergy: *r.TotalEnergy}
	}
	if err := ValidateRecords(out); err != nil {
		return nil, err
	}
	return out, nil
}
