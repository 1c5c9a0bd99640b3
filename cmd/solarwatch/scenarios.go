package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HerbHall/solarwatch/internal/anomaly"
	"github.com/HerbHall/solarwatch/internal/anomaly/scenario"
)

func newScenariosCmd() *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Score the bundled sample windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScenarios(cmd.OutOrStdout(), method)
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", "", "only run this method (default: all)")
	return cmd
}

func runScenarios(out io.Writer, methodName string) error {
	methods := anomaly.Methods()
	if methodName != "" {
		m, err := anomaly.ParseMethod(methodName)
		if err != nil {
			return err
		}
		methods = []anomaly.Method{m}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"SCENARIO", "DAYS"}
	for _, m := range methods {
		header = append(header, strings.ToUpper(string(m)))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, s := range scenario.All() {
		row := []string{s.Slug, fmt.Sprint(len(s.Records))}
		for _, m := range methods {
			annotated, err := anomaly.Detect(s.Records, m, anomaly.DefaultOptions())
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Slug, err)
			}
			row = append(row, fmt.Sprint(anomaly.ComputeStats(annotated).AnomalyCount))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
