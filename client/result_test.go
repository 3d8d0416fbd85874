package client

import (
	"math"
	"math/rand"
	"time"

	"github.com/buoyantio/strest-echo/latency"
	"github.com/pkg/errors"
	. "gopkg.in/check.v1"
)

type ResultTestSuite struct{}

var _ = Suite(&ResultTestSuite{})

// workerResults builds n deterministic worker results.
func workerResults(c *C, n int) []*BenchmarkResult {
	r := rand.New(rand.NewSource(7))
	out := make([]*BenchmarkResult, n)
	for i := range out {
		res := NewBenchmarkResult(latency.DefaultLayout)
		txns := 3 + r.Intn(5)
		for t := 0; t < txns; t++ {
			c.Assert(res.TransactionLatency.Record(time.Duration(r.Int63n(int64(20*time.Millisecond)))), IsNil)
			c.Assert(res.CommandLatency.Record(time.Duration(r.Int63n(int64(5*time.Millisecond)))), IsNil)
		}
		res.Committed = uint64(txns)
		res.Elapsed = time.Duration(1+r.Intn(1000)) * time.Millisecond
		res.Throughput = float64(txns) / res.Elapsed.Seconds()
		out[i] = res
	}
	return out
}

func (*ResultTestSuite) TestEmptyAggregateIsZero(c *C) {
	total, err := Aggregate(latency.DefaultLayout, nil)
	c.Assert(err, IsNil)
	c.Assert(total.Committed, Equals, uint64(0))
	c.Assert(total.Throughput, Equals, 0.0)
	c.Assert(total.Elapsed, Equals, time.Duration(0))
	c.Assert(total.TransactionLatency.Count(), Equals, int64(0))

	report := NewReport(total)
	c.Assert(report.TxnLatMax, Equals, 0.0)
	c.Assert(report.CmdLatP50, Equals, 0.0)
}

func (*ResultTestSuite) TestAggregateFolds(c *C) {
	results := workerResults(c, 4)
	var committed uint64
	var tps float64
	var elapsed time.Duration
	var txns int64
	for _, r := range results {
		committed += r.Committed
		tps += r.Throughput
		if r.Elapsed > elapsed {
			elapsed = r.Elapsed
		}
		txns += r.TransactionLatency.Count()
	}

	total, err := Aggregate(latency.DefaultLayout, results)
	c.Assert(err, IsNil)
	c.Assert(total.Committed, Equals, committed)
	c.Assert(total.Elapsed, Equals, elapsed)
	c.Assert(math.Abs(total.Throughput-tps) < 1e-9, Equals, true)
	c.Assert(total.TransactionLatency.Count(), Equals, txns)
}

func (*ResultTestSuite) TestAggregateIgnoresOrder(c *C) {
	forward, err := Aggregate(latency.DefaultLayout, workerResults(c, 5))
	c.Assert(err, IsNil)

	reversed := workerResults(c, 5)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	backward, err := Aggregate(latency.DefaultLayout, reversed)
	c.Assert(err, IsNil)

	a, b := NewReport(forward), NewReport(backward)
	c.Assert(math.Abs(a.Throughput-b.Throughput) < 1e-9, Equals, true)
	a.Throughput, b.Throughput = 0, 0
	c.Assert(a, DeepEquals, b)
}

func (*ResultTestSuite) TestAggregateSkipsFailedWorkers(c *C) {
	results := workerResults(c, 3)
	committed := results[0].Committed + results[2].Committed
	results[1] = nil

	total, err := Aggregate(latency.DefaultLayout, results)
	c.Assert(err, IsNil)
	c.Assert(total.Committed, Equals, committed)
}

func (*ResultTestSuite) TestDoubleMergeRejected(c *C) {
	one := workerResults(c, 1)[0]
	total := NewBenchmarkResult(latency.DefaultLayout)
	c.Assert(total.Merge(one), IsNil)

	err := total.Merge(one)
	c.Assert(err, Equals, ErrAlreadyMerged)
	c.Assert(total.Committed, Equals, one.Committed)

	other := NewBenchmarkResult(latency.DefaultLayout)
	c.Assert(other.Merge(one), Equals, ErrAlreadyMerged)
}

func (*ResultTestSuite) TestIncompatibleLayoutRejected(c *C) {
	narrow := latency.Layout{Lowest: time.Microsecond, Highest: time.Second, SigFigs: 2}
	total := NewBenchmarkResult(latency.DefaultLayout)
	other := NewBenchmarkResult(narrow)
	other.Committed = 3

	err := total.Merge(other)
	c.Assert(errors.Is(err, latency.ErrIncompatibleLayout), Equals, true)
	c.Assert(total.Committed, Equals, uint64(0))

	// a rejected result can still be merged elsewhere
	c.Assert(NewBenchmarkResult(narrow).Merge(other), IsNil)
}
