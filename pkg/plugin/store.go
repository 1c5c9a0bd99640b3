package plugin

import (
	"context"
	"database/sql"
)

// Store is the shared relational database. Each module owns its own tables
// and brings them up to date through Migrate.
type Store interface {
	DB() *sql.DB
	Tx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Migrate(ctx context.Context, pluginName string, migrations []Migration) error
}

// Migration is one forward-only schema change. Versions are per module and
// must ascend.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}
