package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HerbHall/solarwatch/internal/records"
	"github.com/HerbHall/solarwatch/internal/seed"
	"github.com/HerbHall/solarwatch/internal/server"
)

func newSeedCmd(configPath *string) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the bundled scenarios into the local store as demo units",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := server.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				v.Set("database.path", dbPath)
			}

			db, err := openStore(cmd.Context(), v.GetString("database.path"))
			if err != nil {
				return err
			}
			defer db.Close()

			rs, err := records.Open(cmd.Context(), db)
			if err != nil {
				return err
			}
			n, err := seed.SeedDemoUnits(cmd.Context(), rs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d records under %s* units\n", n, seed.UnitPrefix)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default database.path)")
	return cmd
}
