package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sarchlab/motorarbiter/datarecording"
	"github.com/sarchlab/motorarbiter/tracing"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize a recording made with run --record.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("record")
		if path == "" {
			return fmt.Errorf("--record is required")
		}

		failures, _ := cmd.Flags().GetInt("failures")

		reader, err := datarecording.OpenReader(recordingFile(path))
		if err != nil {
			return err
		}
		defer reader.Close()

		return report(cmd.Context(), cmd.OutOrStdout(), reader, failures)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("record", envString("ARBITER_RECORD", ""),
		"The recording to read, with or without the .sqlite3 extension.")
	reportCmd.Flags().Int("failures", 10,
		"How many of the latest refused writes to list.")
}

func recordingFile(path string) string {
	if strings.HasSuffix(path, ".sqlite3") {
		return path
	}

	return path + ".sqlite3"
}

type managerReport struct {
	name     string
	ticks    int
	overruns int
	writes   int
	failures int
	total    time.Duration
	max      time.Duration
}

func (r managerReport) String() string {
	avg := time.Duration(0)
	if r.ticks > 0 {
		avg = r.total / time.Duration(r.ticks)
	}

	return fmt.Sprintf(
		"%s: %d ticks, average %v, max %v, %d overruns, "+
			"%d writes, %d failed writes",
		r.name, r.ticks, avg, r.max, r.overruns, r.writes, r.failures)
}

func summarizeTicks(records []tracing.TickRecord) []managerReport {
	byName := make(map[string]*managerReport)

	for _, rec := range records {
		r, ok := byName[rec.Manager]
		if !ok {
			r = &managerReport{name: rec.Manager}
			byName[rec.Manager] = r
		}

		d := time.Duration(rec.Duration)
		r.ticks++
		r.total += d
		r.writes += rec.Writes
		r.failures += rec.Failures

		if d > r.max {
			r.max = d
		}

		if rec.Overrun {
			r.overruns++
		}
	}

	reports := make([]managerReport, 0, len(byName))
	for _, r := range byName {
		reports = append(reports, *r)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].name < reports[j].name
	})

	return reports
}

func report(
	ctx context.Context,
	w io.Writer,
	reader *datarecording.Reader,
	failures int,
) error {
	ticks, err := datarecording.Query[tracing.TickRecord](
		ctx, reader, tracing.TickTableName,
		datarecording.Filter{OrderBy: "Manager, Tick"})
	if err != nil {
		return err
	}

	for _, r := range summarizeTicks(ticks) {
		fmt.Fprintln(w, r)
	}

	if failures <= 0 {
		return nil
	}

	latest, err := datarecording.Query[tracing.FailureRecord](
		ctx, reader, tracing.FailureTableName,
		datarecording.Filter{OrderBy: "Tick DESC", Limit: failures})
	if err != nil {
		return err
	}

	for _, f := range latest {
		fmt.Fprintf(w, "  tick %d: %s %s.%s = %g: %s\n",
			f.Tick, f.Manager, f.Actuator, f.Property, f.Value, f.Error)
	}

	return nil
}
