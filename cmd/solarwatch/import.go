package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HerbHall/solarwatch/internal/config"
	"github.com/HerbHall/solarwatch/internal/records"
	"github.com/HerbHall/solarwatch/internal/server"
	"github.com/HerbHall/solarwatch/pkg/plugin"
)

type importOptions struct {
	unitID string
	input  string
	dbPath string
}

func newImportCmd(configPath *string) *cobra.Command {
	opts := importOptions{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a record file into the local records store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := server.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if opts.dbPath != "" {
				v.Set("database.path", opts.dbPath)
			}
			n, err := runImport(cmd, v, &opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records for unit %s into %s\n",
				n, opts.unitID, v.GetString("database.path"))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.unitID, "unit", "u", "", "solar unit ID (defaults to unitId in the file)")
	f.StringVarP(&opts.input, "input", "i", "", "record file (.json, .yaml)")
	f.StringVar(&opts.dbPath, "db", "", "database path (default database.path)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// runImport stores the file's records through the records module so imports
// from the CLI get the same validation and limits as the HTTP API.
func runImport(cmd *cobra.Command, v *viper.Viper, opts *importOptions) (int, error) {
	file, recs, err := readRecordFile(opts.input)
	if err != nil {
		return 0, err
	}
	if opts.unitID == "" {
		opts.unitID = file.UnitID
	}
	if opts.unitID == "" {
		return 0, fmt.Errorf("no unit: pass --unit or set unitId in %s", opts.input)
	}

	ctx := cmd.Context()
	db, err := openStore(ctx, v.GetString("database.path"))
	if err != nil {
		return 0, err
	}
	defer db.Close()

	logger, err := config.NewLogger(v)
	if err != nil {
		return 0, fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// The local store is the import target whatever source serve would use.
	v.Set("plugins.records.source", records.BackendSQLite)
	m := records.New()
	if err := m.Init(ctx, plugin.Dependencies{
		Config: config.ForPlugin(v, "records"),
		Logger: logger.Named("records"),
		Store:  db,
	}); err != nil {
		return 0, err
	}
	return m.Import(ctx, opts.unitID, recs)
}
