// Package sweep reruns the benchmark over a grid of worker and command
// counts and tabulates the reports.
package sweep

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/buoyantio/strest-echo/client"
	"github.com/hashicorp/go-multierror"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config describes the grid. Every other setting comes from Client.
type Config struct {
	Client        client.Config
	WorkerCounts  []uint
	CommandCounts []uint
	// Output is the path of the CSV file written by Run.
	Output string
}

// DefaultConfig returns the configuration used when no flags are given:
// 1000 transactions per worker at every point of the grid.
func DefaultConfig() Config {
	cfg := client.DefaultConfig()
	cfg.Transactions = 1000
	return Config{
		Client:        cfg,
		WorkerCounts:  []uint{1, 2, 4, 8, 16},
		CommandCounts: []uint{2, 3, 6, 11, 16, 21},
		Output:        "results.csv",
	}
}

// Row is the outcome of one grid point.
type Row struct {
	Workers  uint
	Commands uint
	Report   client.Report
	// Failed is set when some workers of this point did not finish.
	Failed bool
}

var header = []string{
	"workers", "commands", "elapsed", "committed", "tps",
	"txn_lat_min", "txn_lat_p50", "txn_lat_p90", "txn_lat_p99", "txn_lat_max",
	"cmd_lat_min", "cmd_lat_p50", "cmd_lat_p90", "cmd_lat_p99", "cmd_lat_max",
}

func (r Row) fields() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
	rep := r.Report
	return []string{
		strconv.FormatUint(uint64(r.Workers), 10),
		strconv.FormatUint(uint64(r.Commands), 10),
		f(rep.Elapsed),
		strconv.FormatUint(rep.Committed, 10),
		f(rep.Throughput),
		f(rep.TxnLatMin), f(rep.TxnLatP50), f(rep.TxnLatP90), f(rep.TxnLatP99), f(rep.TxnLatMax),
		f(rep.CmdLatMin), f(rep.CmdLatP50), f(rep.CmdLatP90), f(rep.CmdLatP99), f(rep.CmdLatMax),
	}
}

// FormatCounts is the inverse of ParseCounts.
func FormatCounts(counts []uint) string {
	s := make([]string, len(counts))
	for i, n := range counts {
		s[i] = strconv.FormatUint(uint64(n), 10)
	}
	return strings.Join(s, ",")
}

// ParseCounts reads a comma separated list of counts, e.g. "1,2,4".
func ParseCounts(s string) ([]uint, error) {
	var counts []uint
	for _, c := range strings.Split(s, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		n, err := strconv.ParseUint(c, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing count %q", c)
		}
		counts = append(counts, uint(n))
	}
	return counts, nil
}

// Validate reports the first setting that cannot be swept.
func (cfg Config) Validate() error {
	if len(cfg.WorkerCounts) == 0 || len(cfg.CommandCounts) == 0 {
		return errors.New("at least one worker count and one command count are required")
	}
	for _, w := range cfg.WorkerCounts {
		if w < 1 {
			return errors.New("worker counts must be at least 1")
		}
	}
	return nil
}

// Execute runs every grid point in order, workers outermost. A point
// whose run partially failed is still recorded; its error is collected
// and the sweep continues unless ctx is done.
func Execute(ctx context.Context, cfg Config, factory client.ConnectionFactory) ([]Row, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var failures *multierror.Error
	rows := make([]Row, 0, len(cfg.WorkerCounts)*len(cfg.CommandCounts))
	for _, workers := range cfg.WorkerCounts {
		for _, commands := range cfg.CommandCounts {
			if err := ctx.Err(); err != nil {
				return rows, multierror.Append(failures, err).ErrorOrNil()
			}

			run := cfg.Client
			run.Workers = workers
			run.Commands = commands

			entry := log.WithFields(log.Fields{"workers": workers, "commands": commands})
			entry.Info("running")
			res, err := client.Execute(ctx, run, factory)
			if res == nil {
				return rows, multierror.Append(failures, err).ErrorOrNil()
			}
			row := Row{Workers: workers, Commands: commands, Report: client.NewReport(res)}
			if err != nil {
				row.Failed = true
				entry.Warnf("partial run: %v", err)
				failures = multierror.Append(failures, errors.Wrapf(err, "workers=%d commands=%d", workers, commands))
			}
			entry.Infof("%.0f txn/s", row.Report.Throughput)
			rows = append(rows, row)
		}
	}
	return rows, failures.ErrorOrNil()
}

// WriteCSV writes a header line and one record per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable renders the throughput and the median and tail latencies of
// every row.
func WriteTable(w io.Writer, rows []Row) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault

	t.AppendHeader(table.Row{"workers", "commands", "committed", "tps", "txn p50 ms", "txn p99 ms", "cmd p50 ms", "cmd p99 ms", ""})
	for _, r := range rows {
		status := ""
		if r.Failed {
			status = "partial"
		}
		rep := r.Report
		t.AppendRow(table.Row{
			r.Workers, r.Commands, rep.Committed,
			fmt.Sprintf("%.0f", rep.Throughput),
			fmt.Sprintf("%.3f", rep.TxnLatP50), fmt.Sprintf("%.3f", rep.TxnLatP99),
			fmt.Sprintf("%.3f", rep.CmdLatP50), fmt.Sprintf("%.3f", rep.CmdLatP99),
			status,
		})
	}
	t.Render()
}

// Run dials cfg.Client.Address, sweeps the grid, writes the CSV file and
// prints the summary table to out. Both are written for whatever rows
// completed, even if the sweep failed.
func (cfg Config) Run(ctx context.Context, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Client.Validate(); err != nil {
		return err
	}
	if cfg.Client.MetricAddr != "" {
		client.ServeMetrics(cfg.Client.MetricAddr)
	}

	dialer, err := client.NewDialer(cfg.Client)
	if err != nil {
		return err
	}

	rows, runErr := Execute(ctx, cfg, dialer)

	f, err := os.Create(cfg.Output)
	if err != nil {
		return errors.Wrapf(err, "creating %s", cfg.Output)
	}
	defer f.Close()
	if err := WriteCSV(f, rows); err != nil {
		return errors.Wrapf(err, "writing %s", cfg.Output)
	}
	log.Infof("wrote %d rows to %s", len(rows), cfg.Output)

	WriteTable(out, rows)
	return runErr
}
