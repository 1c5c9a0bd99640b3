// Package testutil provides fixtures shared by solarwatch tests.
package testutil

import (
	"testing"
	"time"

	"github.com/HerbHall/solarwatch/internal/store"
	"github.com/HerbHall/solarwatch/pkg/energy"
)

// NewRecord returns a Record with sensible defaults, suitable for test
// fixtures. Override individual fields with options.
func NewRecord(opts ...func(*energy.Record)) energy.Record {
	r := energy.Record{
		Date:        "2024-01-01",
		TotalEnergy: 35,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithDate sets the record date.
func WithDate(date string) func(*energy.Record) {
	return func(r *energy.Record) { r.Date = date }
}

// WithEnergy sets the record's total energy in kWh.
func WithEnergy(kwh float64) func(*energy.Record) {
	return func(r *energy.Record) { r.TotalEnergy = kwh }
}

// Series returns one record per value on consecutive days from start
// (YYYY-MM-DD). It panics on a malformed start date.
func Series(start string, values ...float64) []energy.Record {
	day, err := time.Parse(energy.DateLayout, start)
	if err != nil {
		panic("testutil.Series: " + err.Error())
	}
	out := make([]energy.Record, len(values))
	for i, v := range values {
		out[i] = NewRecord(WithDate(day.AddDate(0, 0, i).Format(energy.DateLayout)), WithEnergy(v))
	}
	return out
}

// MemStore opens a private in-memory database that is closed when the test
// ends.
func MemStore(t testing.TB) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
