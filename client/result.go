package client

import (
	"time"

	"github.com/buoyantio/strest-echo/latency"
	"github.com/pkg/errors"
)

// BenchmarkResult is what one worker produces, and also the fold of many
// workers' results.
type BenchmarkResult struct {
	// Throughput is committed transactions per second. Summed across
	// workers, since each contributes independently to system throughput.
	Throughput float64
	// TransactionLatency holds one observation per transaction.
	TransactionLatency *latency.Recorder
	// CommandLatency holds one observation per unary command. It stays
	// empty in streaming mode.
	CommandLatency *latency.Recorder
	// Elapsed is wall clock time. The maximum across workers, since the
	// run lasts as long as its slowest worker.
	Elapsed time.Duration
	// Committed is the number of completed transactions.
	Committed uint64

	merged bool
}

// NewBenchmarkResult returns a zero-valued result whose recorders use layout.
func NewBenchmarkResult(layout latency.Layout) *BenchmarkResult {
	return &BenchmarkResult{
		TransactionLatency: latency.New(layout),
		CommandLatency:     latency.New(layout),
	}
}

// Merge folds other into r. Each result may be merged at most once; a
// second merge would double count it and fails with ErrAlreadyMerged.
// On error r is left unchanged.
func (r *BenchmarkResult) Merge(other *BenchmarkResult) error {
	if other.merged {
		return ErrAlreadyMerged
	}
	if !r.TransactionLatency.Compatible(other.TransactionLatency) || !r.CommandLatency.Compatible(other.CommandLatency) {
		return errors.Wrap(latency.ErrIncompatibleLayout, "merging results")
	}
	if err := r.TransactionLatency.Merge(other.TransactionLatency); err != nil {
		return err
	}
	if err := r.CommandLatency.Merge(other.CommandLatency); err != nil {
		return err
	}

	r.Throughput += other.Throughput
	if other.Elapsed > r.Elapsed {
		r.Elapsed = other.Elapsed
	}
	r.Committed += other.Committed
	other.merged = true
	return nil
}

// Aggregate folds results in order into a new result. Nil entries stand
// for workers that failed and are skipped. An empty input yields a zero
// result.
func Aggregate(layout latency.Layout, results []*BenchmarkResult) (*BenchmarkResult, error) {
	total := NewBenchmarkResult(layout)
	for i, res := range results {
		if res == nil {
			continue
		}
		if err := total.Merge(res); err != nil {
			return nil, errors.Wrapf(err, "worker %d", i)
		}
	}
	return total, nil
}
