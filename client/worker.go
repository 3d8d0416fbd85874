package client

import (
	"context"
	"time"

	"github.com/buoyantio/strest-echo/latency"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// worker is one simulated client. It owns its connection and recorders
// and runs its transactions strictly one after another.
type worker struct {
	id      uint
	cfg     Config
	factory ConnectionFactory
	log     *log.Entry
}

func newWorker(id uint, cfg Config, factory ConnectionFactory) *worker {
	return &worker{
		id:      id,
		cfg:     cfg,
		factory: factory,
		log:     log.WithFields(log.Fields{"worker": id, "mode": cfg.Mode}),
	}
}

func (w *worker) runner(conn Conn, commandLatency *latency.Recorder) commandRunner {
	if w.cfg.Mode == Streaming {
		return &streamingRunner{
			client:   conn,
			commands: w.cfg.Commands,
			window:   w.cfg.Window,
			timeout:  w.cfg.TransactionTimeout,
		}
	}
	return &unaryRunner{
		client:   conn,
		commands: w.cfg.Commands,
		latency:  commandLatency,
	}
}

// run connects and executes every transaction. Any failure aborts the
// worker and no partial result is returned.
func (w *worker) run(ctx context.Context) (*BenchmarkResult, error) {
	conn, err := w.factory.Connect(ctx)
	if err != nil {
		promWorkerFailures.WithLabelValues("connect").Inc()
		return nil, errors.Wrapf(err, "worker %d: connecting", w.id)
	}
	defer conn.Close()

	promActiveWorkers.Inc()
	defer promActiveWorkers.Dec()

	result := NewBenchmarkResult(w.cfg.Layout)
	runner := w.runner(conn, result.CommandLatency)

	var limiter *rate.Limiter
	if w.cfg.TargetTps > 0 {
		limiter = rate.NewLimiter(rate.Limit(w.cfg.TargetTps), 1)
	}

	w.log.Debugf("starting %d transactions of %d commands", w.cfg.Transactions, w.cfg.Commands)
	start := time.Now()
	for t := uint(0); t < w.cfg.Transactions; t++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				w.fail(err)
				return nil, errors.Wrapf(err, "worker %d: waiting for transaction %d", w.id, t)
			}
		}

		txnStart := time.Now()
		if err := runner.runTransaction(ctx); err != nil {
			w.fail(err)
			return nil, errors.Wrapf(err, "worker %d: transaction %d", w.id, t)
		}
		elapsed := time.Since(txnStart)

		if err := result.TransactionLatency.Record(elapsed); err != nil {
			w.fail(err)
			return nil, errors.Wrapf(err, "worker %d: transaction %d", w.id, t)
		}
		promTransactions.Inc()
		promTransactionLatency.Observe(elapsed.Seconds() * 1000)
	}
	result.Elapsed = time.Since(start)

	result.Committed = uint64(w.cfg.Transactions)
	if w.cfg.Transactions > 0 && result.Elapsed > 0 {
		result.Throughput = float64(w.cfg.Transactions) / result.Elapsed.Seconds()
	}
	w.log.Debugf("finished in %s (%.0f txn/s)", result.Elapsed, result.Throughput)
	return result, nil
}

func (w *worker) fail(err error) {
	switch {
	case errors.Is(err, ErrPeerDisconnected):
		promWorkerFailures.WithLabelValues("disconnect").Inc()
		w.log.Warnf("peer disconnected: %v", err)
	case errors.Is(err, ErrStreamClosed):
		promWorkerFailures.WithLabelValues("stream_closed").Inc()
		w.log.Warnf("stream closed early: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		promWorkerFailures.WithLabelValues("timeout").Inc()
		w.log.Warnf("transaction timed out: %v", err)
	case errors.Is(err, latency.ErrOutOfRange):
		promWorkerFailures.WithLabelValues("out_of_range").Inc()
		w.log.Errorf("latency not recordable: %v", err)
	case errors.Is(err, context.Canceled):
		promWorkerFailures.WithLabelValues("canceled").Inc()
		w.log.Debugf("canceled: %v", err)
	default:
		promWorkerFailures.WithLabelValues("transport").Inc()
		w.log.Errorf("transaction failed: %v", err)
	}
}
