// Package client drives concurrent workers against an echo service and
// aggregates their throughput and latency.
package client

import (
	"context"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Execute runs cfg.Workers workers concurrently, each with its own
// connection from factory, and folds their results in worker order.
//
// A failed worker contributes nothing to the aggregate. Its error is
// collected and returned alongside the aggregate of the workers that
// succeeded, so a partial run shows up as Committed < Workers*Transactions.
// With cfg.FailFast the first failure also cancels the other workers.
func Execute(ctx context.Context, cfg Config, factory ConnectionFactory) (*BenchmarkResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		failures *multierror.Error
	)
	results := make([]*BenchmarkResult, cfg.Workers)
	g, gctx := errgroup.WithContext(ctx)

	for i := uint(0); i < cfg.Workers; i++ {
		i := i
		w := newWorker(i, cfg, factory)
		g.Go(func() error {
			res, err := w.run(gctx)
			if err != nil {
				mu.Lock()
				failures = multierror.Append(failures, err)
				mu.Unlock()
				if cfg.FailFast {
					return err
				}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	// errors are collected in failures
	_ = g.Wait()

	total, err := Aggregate(cfg.Layout, results)
	if err != nil {
		return nil, err
	}

	if err := failures.ErrorOrNil(); err != nil {
		log.Errorf("%d of %d workers failed", len(failures.Errors), cfg.Workers)
		return total, err
	}
	return total, nil
}

// Run dials cfg.Address, executes the benchmark and writes the report to
// out. The report is written even when some workers failed; the returned
// error then describes the failures.
func (cfg Config) Run(ctx context.Context, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.MetricAddr != "" {
		ServeMetrics(cfg.MetricAddr)
	}

	dialer, err := NewDialer(cfg)
	if err != nil {
		return err
	}

	log.Infof("running %d clients x %d transactions x %d commands (%s) against %s",
		cfg.Workers, cfg.Transactions, cfg.Commands, cfg.Mode, cfg.Address)

	result, runErr := Execute(ctx, cfg, dialer)
	if result != nil {
		if err := NewReport(result).Write(out, cfg.Format); err != nil {
			return err
		}
	}
	return runErr
}
