package records

import (
	"database/sql"

	"github.com/HerbHall/solarwatch/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create energy generation records table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS energy_generation_records (
						solar_unit_id TEXT NOT NULL,
						date          TEXT NOT NULL,
						total_energy  REAL NOT NULL,
						imported_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						PRIMARY KEY (solar_unit_id, date)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_energy_records_unit_date ON energy_generation_records(solar_unit_id, date DESC)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
