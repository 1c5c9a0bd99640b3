// Package seed loads demo data for trying solarwatch without a real
// installation.
package seed

import (
	"context"
	"fmt"

	"github.com/HerbHall/solarwatch/internal/anomaly/scenario"
	"github.com/HerbHall/solarwatch/internal/records"
)

// UnitPrefix is prepended to scenario slugs to form demo unit IDs.
const UnitPrefix = "demo-"

// SeedDemoUnits stores every bundled scenario as its own solar unit
// (demo-panel-failure, demo-sensor-error, ...) and returns the number of
// records written. It is idempotent: imports upsert on (unit, date).
func SeedDemoUnits(ctx context.Context, rs *records.RecordStore) (int, error) {
	total := 0
	for _, s := range scenario.All() {
		n, err := rs.Import(ctx, UnitPrefix+s.Slug, s.Records)
		if err != nil {
			return total, fmt.Errorf("seed unit %s: %w", s.Slug, err)
		}
		total += n
	}
	return total, nil
}
