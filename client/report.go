package client

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/buoyantio/strest-echo/latency"
)

// Report is the final summary of a run: three totals and five percentile
// points for each of the two latency classes, in milliseconds.
type Report struct {
	Elapsed    float64 `json:"elapsed"`
	Committed  uint64  `json:"committed"`
	Throughput float64 `json:"tps"`

	TxnLatMin float64 `json:"txn_lat_min"`
	TxnLatP50 float64 `json:"txn_lat_p50"`
	TxnLatP90 float64 `json:"txn_lat_p90"`
	TxnLatP99 float64 `json:"txn_lat_p99"`
	TxnLatMax float64 `json:"txn_lat_max"`

	CmdLatMin float64 `json:"cmd_lat_min"`
	CmdLatP50 float64 `json:"cmd_lat_p50"`
	CmdLatP90 float64 `json:"cmd_lat_p90"`
	CmdLatP99 float64 `json:"cmd_lat_p99"`
	CmdLatMax float64 `json:"cmd_lat_max"`
}

func percentileMs(rec *latency.Recorder, p float64) float64 {
	return float64(rec.Percentile(p)) / float64(time.Millisecond)
}

// NewReport computes the report for r without modifying it.
func NewReport(r *BenchmarkResult) Report {
	return Report{
		Elapsed:    r.Elapsed.Seconds(),
		Committed:  r.Committed,
		Throughput: r.Throughput,

		TxnLatMin: percentileMs(r.TransactionLatency, 0),
		TxnLatP50: percentileMs(r.TransactionLatency, 50),
		TxnLatP90: percentileMs(r.TransactionLatency, 90),
		TxnLatP99: percentileMs(r.TransactionLatency, 99),
		TxnLatMax: percentileMs(r.TransactionLatency, 100),

		CmdLatMin: percentileMs(r.CommandLatency, 0),
		CmdLatP50: percentileMs(r.CommandLatency, 50),
		CmdLatP90: percentileMs(r.CommandLatency, 90),
		CmdLatP99: percentileMs(r.CommandLatency, 99),
		CmdLatMax: percentileMs(r.CommandLatency, 100),
	}
}

// Write renders the report to w in the given format.
func (r Report) Write(w io.Writer, format Format) error {
	if format == Structured {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	_, err := fmt.Fprintf(w, `Elapsed: %.3f s
Committed Transactions: %d
Throughput: %.0f txn/s
Transaction Latency:
	min: %.3f ms
	p50: %.3f ms
	p90: %.3f ms
	p99: %.3f ms
	max: %.3f ms
Command Latency:
	min: %.3f ms
	p50: %.3f ms
	p90: %.3f ms
	p99: %.3f ms
	max: %.3f ms
`,
		r.Elapsed, r.Committed, r.Throughput,
		r.TxnLatMin, r.TxnLatP50, r.TxnLatP90, r.TxnLatP99, r.TxnLatMax,
		r.CmdLatMin, r.CmdLatP50, r.CmdLatP90, r.CmdLatP99, r.CmdLatMax,
	)
	return err
}
