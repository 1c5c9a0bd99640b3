package anomaly

import (
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/solarwatch/pkg/energy"
)

// ErrInvalidArgument is returned (wrapped) for unusable detection input:
// malformed records, unknown methods, or out-of-range thresholds.
var ErrInvalidArgument = errors.New("invalid argument")

// RecordError describes the first malformed record of a rejected batch.
type RecordError struct {
	Index  int
	Date   string
	Reason string
}

func (e *RecordError) Error() string {
	if e.Date != "" {
		return fmt.Sprintf("invalid record %d (%s): %s", e.Index, e.Date, e.Reason)
	}
	return fmt.Sprintf("invalid record %d: %s", e.Index, e.Reason)
}

// Is reports RecordError as an ErrInvalidArgument.
func (e *RecordError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// ValidateRecords rejects the whole batch if any record has a missing or
// unparseable date, a negative or non-finite energy value, or repeats a date.
func ValidateRecords(records []energy.Record) error {
	seen := make(map[string]int, len(records))
	for i, r := range records {
		if r.Date == "" {
			return &RecordError{Index: i, Reason: "date is required"}
		}
		if _, err := time.Parse(energy.DateLayout, r.Date); err != nil {
			return &RecordError{Index: i, Date: r.Date, Reason: "date must be formatted as YYYY-MM-DD"}
		}
		if !isFinite(r.TotalEnergy) {
			return &RecordError{Index: i, Date: r.Date, Reason: "totalEnergy must be a finite number"}
		}
		if r.TotalEnergy < 0 {
			return &RecordError{Index: i, Date: r.Date, Reason: "totalEnergy must not be negative"}
		}
		if prev, dup := seen[r.Date]; dup {
			return &RecordError{Index: i, Date: r.Date, Reason: fmt.Sprintf("duplicate of record %d", prev)}
		}
		seen[r.Date] = i
	}
	return nil
}
