package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"netpulse/internal/config"
	"netpulse/internal/logger"
	"netpulse/internal/models"
	"netpulse/internal/probe"
	"netpulse/internal/report"
	"netpulse/internal/session"
)

type simulateOptions struct {
	configPath string
	ticks      int
	csvPath    string
	seed       uint64
	jsonOut    bool
}

func newSimulateCmd(log *logger.Logger) *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a headless session and print its report",
		Long: `Run a monitoring session against a synthetic clock, one tick per simulated
second, then print the summary report.
For example:
  netpulse simulate --ticks 300 --csv report.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ticks < 0 {
				return errors.Errorf("--ticks must not be negative, got %d", opts.ticks)
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			loc, err := config.Location(cfg.Timezone)
			if err != nil {
				return err
			}

			var src probe.Source
			if opts.seed != 0 {
				src = rand.New(rand.NewPCG(opts.seed, opts.seed))
			}
			summary, sess, err := simulate(cfg.Nodes, probe.NewSimulator(src), opts.ticks, time.Now(), loc, log)
			if err != nil {
				return err
			}

			if opts.csvPath != "" {
				if err := writeCSVFile(opts.csvPath, sess, loc); err != nil {
					return err
				}
				log.Info("csv export written", "path", opts.csvPath, "records", len(sess.Records))
			}
			if opts.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML config file")
	cmd.Flags().IntVarP(&opts.ticks, "ticks", "n", 60, "Number of one-second ticks to simulate")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "Write the session records as CSV to this file")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Seed for the probe generator (0 picks a random seed)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the summary as JSON")
	return cmd
}

// simulate runs ticks rounds on a clock that starts at start and advances one
// second per tick.
func simulate(nodes []models.Node, prober session.Prober, ticks int, start time.Time, loc *time.Location, log *logger.Logger) (report.Summary, models.Session, error) {
	now := start
	ctl := session.NewController(nodes, prober, loc, session.WithClock(func() time.Time { return now }))

	if _, err := ctl.Start(); err != nil {
		return report.Summary{}, models.Session{}, err
	}
	for i := 0; i < ticks; i++ {
		now = now.Add(time.Second)
		batch, view, err := ctl.Tick()
		if err != nil {
			return report.Summary{}, models.Session{}, errors.Wrapf(err, "tick %d", i+1)
		}
		log.Debug("tick", "n", i+1, "records", len(batch), "live_score", view.Live.Score)
	}
	sess, err := ctl.Stop()
	if err != nil {
		return report.Summary{}, models.Session{}, err
	}
	return report.Build(sess, now, loc), sess, nil
}

func writeCSVFile(path string, sess models.Session, loc *time.Location) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := report.WriteCSV(f, sess, loc); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

func printSummary(w io.Writer, s report.Summary) error {
	_, err := fmt.Fprintf(w, "Session %s\n%s - %s (%.1f min, %d records)\n\n",
		s.SessionID, s.Start, s.End, s.DurationMinutes, s.RecordCount)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Overall  score %3d  %-9s avg %4dms  max %4dms  jitter %3dms  loss %.2f%%\n\n",
		s.Overall.Score, s.Overall.Status, s.Overall.AvgLatencyMs, s.Overall.MaxLatencyMs, s.Overall.JitterMs, s.Overall.PacketLossRatePct)
	for _, n := range s.Nodes {
		fmt.Fprintf(w, "%-28s %-16s score %3d  %-9s avg %4dms  loss %.2f%%\n",
			n.Node.Name, n.Node.Address, n.Stats.Score, n.Stats.Status, n.Stats.AvgLatencyMs, n.Stats.PacketLossRatePct)
	}
	return nil
}
