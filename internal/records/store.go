package records

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/HerbHall/solarwatch/pkg/energy"
	"github.com/HerbHall/solarwatch/pkg/plugin"
)

// UnitSummary describes the records held for one solar unit.
type UnitSummary struct {
	UnitID  string `json:"unitId"`
	Records int    `json:"records"`
	First   string `json:"firstDate"`
	Last    string `json:"lastDate"`
}

// RecordStore provides database access for daily energy records.
type RecordStore struct {
	store plugin.Store
}

// NewRecordStore creates a RecordStore on an already migrated store.
func NewRecordStore(s plugin.Store) *RecordStore {
	return &RecordStore{store: s}
}

// Window returns the most recent limit records of a unit, newest first.
func (s *RecordStore) Window(ctx context.Context, unitID string, limit int) ([]energy.Record, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT date, total_energy FROM energy_generation_records
		WHERE solar_unit_id = ? ORDER BY date DESC LIMIT ?`,
		unitID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query records window: %w", err)
	}
	defer rows.Close()

	out := []energy.Record{}
	for rows.Next() {
		var r energy.Record
		if err := rows.Scan(&r.Date, &r.TotalEnergy); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Import upserts records for a unit in a single transaction and returns how
// many were written. A record for an existing date replaces it.
func (s *RecordStore) Import(ctx context.Context, unitID string, records []energy.Record) (int, error) {
	err := s.store.Tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO energy_generation_records (solar_unit_id, date, total_energy)
			VALUES (?, ?, ?)
			ON CONFLICT(solar_unit_id, date) DO UPDATE SET
				total_energy = excluded.total_energy,
				imported_at = CURRENT_TIMESTAMP`)
		if err != nil {
			return fmt.Errorf("prepare import: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.ExecContext(ctx, unitID, r.Date, r.TotalEnergy); err != nil {
				return fmt.Errorf("import %s/%s: %w", unitID, r.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Units lists every unit with stored records, ordered by unit ID.
func (s *RecordStore) Units(ctx context.Context) ([]UnitSummary, error) {
	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT solar_unit_id, COUNT(*), MIN(date), MAX(date)
		FROM energy_generation_records
		GROUP BY solar_unit_id ORDER BY solar_unit_id`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	out := []UnitSummary{}
	for rows.Next() {
		var u UnitSummary
		if err := rows.Scan(&u.UnitID, &u.Records, &u.First, &u.Last); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return out, nil
}
