package client

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	promTransactions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "echo_client_transactions_total",
		Help: "Number of committed transactions",
	})

	promCommands = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "echo_client_commands_total",
		Help: "Number of commands sent",
	})

	promWorkerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "echo_client_worker_failures_total",
		Help: "Number of workers that aborted, by cause",
	}, []string{"cause"})

	promActiveWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "echo_client_active_workers",
		Help: "Number of workers currently running",
	})

	promTransactionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "echo_client_transaction_latency_ms",
		Help: "Transaction latency distributions in milliseconds.",
		// 40 exponential buckets ranging from 10 us to ~5 minutes
		Buckets: prometheus.ExponentialBuckets(0.01, 1.55, 40),
	})

	promCommandLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "echo_client_command_latency_ms",
		Help:    "Unary command latency distributions in milliseconds.",
		Buckets: prometheus.ExponentialBuckets(0.01, 1.55, 40),
	})

	registerOnce sync.Once
)

func registerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(promTransactions)
		prometheus.MustRegister(promCommands)
		prometheus.MustRegister(promWorkerFailures)
		prometheus.MustRegister(promActiveWorkers)
		prometheus.MustRegister(promTransactionLatency)
		prometheus.MustRegister(promCommandLatency)
	})
}

// ServeMetrics exposes the client and gRPC metrics on addr in the
// background.
func ServeMetrics(addr string) {
	registerMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics server on %s stopped: %v", addr, err)
		}
	}()
}
