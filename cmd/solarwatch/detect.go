package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/HerbHall/solarwatch/internal/anomaly"
	"github.com/HerbHall/solarwatch/internal/chart"
	"github.com/HerbHall/solarwatch/pkg/energy"
)

type detectOptions struct {
	input             string
	method            string
	windowThreshold   float64
	absoluteThreshold float64
	chartPath         string
	output            string
}

func newDetectCmd() *cobra.Command {
	opts := detectOptions{}
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Score a JSON or YAML file of daily records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDetect(cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "record file (.json, .yaml)")
	f.StringVarP(&opts.method, "method", "m", string(anomaly.MethodWindowAverage), "detection method: windowAverage or absolute")
	f.Float64Var(&opts.windowThreshold, "window-threshold", anomaly.DefaultWindowThresholdPercent, "percent below the window average that flags a day")
	f.Float64Var(&opts.absoluteThreshold, "absolute-threshold", anomaly.DefaultAbsoluteThreshold, "kWh below which a day is flagged")
	f.StringVar(&opts.chartPath, "chart", "", "also write a PNG chart to this path")
	f.StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runDetect(out io.Writer, opts detectOptions) error {
	if opts.output != "table" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q (want table or json)", opts.output)
	}
	method, err := anomaly.ParseMethod(opts.method)
	if err != nil {
		return err
	}
	file, recs, err := readRecordFile(opts.input)
	if err != nil {
		return err
	}

	thresholds := energy.Options{
		WindowThresholdPercent: opts.windowThreshold,
		AbsoluteThreshold:      opts.absoluteThreshold,
	}
	annotated, err := anomaly.Detect(recs, method, thresholds)
	if err != nil {
		return err
	}
	report := energy.Report{
		RunID:       uuid.NewString(),
		UnitID:      file.UnitID,
		Method:      string(method),
		Options:     thresholds,
		Records:     annotated,
		Stats:       anomaly.ComputeStats(annotated),
		GeneratedAt: time.Now().UTC(),
	}

	if opts.chartPath != "" {
		png, err := chart.Render(annotated, chartTitle(report), chart.DefaultStyle())
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.chartPath, png, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}

	if opts.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return writeReportTable(out, report)
}

func chartTitle(r energy.Report) string {
	name := r.UnitID
	if name == "" {
		name = "Daily production"
	}
	return fmt.Sprintf("%s: %d of %d days flagged (%s)", name, r.Stats.AnomalyCount, r.Stats.TotalRecords, r.Method)
}

func writeReportTable(out io.Writer, r energy.Report) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tKWH\tANOMALY\tREASON")
	for _, rec := range r.Records {
		flag := "-"
		if rec.HasAnomaly {
			flag = string(rec.AnomalyType)
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%s\t%s\n", rec.Date, rec.TotalEnergy, flag, rec.AnomalyReason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%d of %d days flagged (%s), method %s\n",
		r.Stats.AnomalyCount, r.Stats.TotalRecords, r.Stats.AnomalyRate, r.Method)
	return err
}
