// Package server implements the echo service the benchmark runs against.
package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buoyantio/strest-echo/distribution"
	pb "github.com/buoyantio/strest-echo/protos"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_logrus "github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

var (
	promRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "echo_server_requests_total",
		Help: "Number of messages received",
	})

	promResponses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "echo_server_responses_total",
		Help: "Number of messages echoed",
	})

	promStreamErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "echo_server_stream_errors_total",
		Help: "Number of streaming errors seen",
	})

	promDisconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "echo_server_client_disconnects_total",
		Help: "Number of streams ended by a client going away",
	})
)

func registerMetrics() {
	prometheus.MustRegister(promRequests)
	prometheus.MustRegister(promResponses)
	prometheus.MustRegister(promStreamErrors)
	prometheus.MustRegister(promDisconnects)
}

type server struct {
	pb.UnimplementedEchoServer
	delay distribution.Distribution
}

// pause sleeps for a delay sampled from the configured distribution.
func (s *server) pause(ctx context.Context) error {
	us := s.delay.Sample()
	if us <= 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(us) * time.Microsecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UnaryEcho returns the request payload unchanged.
func (s *server) UnaryEcho(ctx context.Context, in *pb.EchoRequest) (*pb.EchoResponse, error) {
	promRequests.Inc()
	if err := s.pause(ctx); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	promResponses.Inc()
	return &pb.EchoResponse{Value: in.GetValue()}, nil
}

// BidirectionalStreamingEcho echoes every message in the order received,
// one response per request, until the client closes its side.
func (s *server) BidirectionalStreamingEcho(stream pb.Echo_BidirectionalStreamingEchoServer) error {
	for {
		in, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if isClientDisconnect(err) {
				promDisconnects.Inc()
				log.Infof("client disconnected: %v", err)
				return nil
			}
			promStreamErrors.Inc()
			return err
		}
		promRequests.Inc()

		if err := s.pause(stream.Context()); err != nil {
			promDisconnects.Inc()
			log.Infof("client disconnected: %v", err)
			return nil
		}

		if err := stream.Send(&pb.EchoResponse{Value: in.GetValue()}); err != nil {
			if isClientDisconnect(err) {
				promDisconnects.Inc()
				log.Infof("client disconnected: %v", err)
				return nil
			}
			promStreamErrors.Inc()
			return err
		}
		promResponses.Inc()
	}
}

// isClientDisconnect reports whether err means the peer went away rather
// than the stream failing.
func isClientDisconnect(err error) bool {
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch status.Code(err) {
	case codes.Canceled, codes.Unavailable:
		return true
	}
	return false
}

// Config configures the echo server.
type Config struct {
	Address        string
	UseUnixAddr    bool
	MetricAddr     string
	TLSCertFile    string
	TLSPrivKeyFile string
	// LatencyPercentiles is a distribution of per-message delay in
	// microseconds, e.g. "50=10,100=100".
	LatencyPercentiles string
	// MaxConnections limits concurrently accepted connections. Zero means
	// unlimited.
	MaxConnections int
	GracePeriod    time.Duration
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Address:            "localhost:50051",
		LatencyPercentiles: "100=0",
		GracePeriod:        5 * time.Second,
	}
}

func (cfg *Config) serveMetrics() {
	if cfg.MetricAddr != "" {
		registerMetrics()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricAddr, mux); err != nil {
				log.Errorf("metrics server on %s stopped: %v", cfg.MetricAddr, err)
			}
		}()
	}
}

func (cfg *Config) af() string {
	if cfg.UseUnixAddr {
		return "unix"
	}
	return "tcp"
}

func (cfg *Config) tlsCreds() (credentials.TransportCredentials, error) {
	if cfg.TLSCertFile != "" && cfg.TLSPrivKeyFile != "" {
		return credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSPrivKeyFile)
	}
	return nil, nil
}

// codeToLevel keeps successful calls out of the default log output.
func codeToLevel(code codes.Code) log.Level {
	switch code {
	case codes.OK, codes.Canceled:
		return log.DebugLevel
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return log.ErrorLevel
	default:
		return log.WarnLevel
	}
}

func recoveryHandler(p interface{}) error {
	log.Errorf("echo handler panicked: %v", p)
	return status.Errorf(codes.Internal, "internal server error: %v", p)
}

// NewServer builds a gRPC server with the echo service registered.
func NewServer(cfg Config) (*grpc.Server, error) {
	delay, err := distribution.Parse(cfg.LatencyPercentiles)
	if err != nil {
		return nil, errors.Wrap(err, "latencyPercentiles was not valid")
	}

	entry := log.WithField("component", "echo-server")
	logOpts := []grpc_logrus.Option{grpc_logrus.WithLevels(codeToLevel)}
	opts := []grpc.ServerOption{
		grpc_middleware.WithUnaryServerChain(
			grpc_prometheus.UnaryServerInterceptor,
			grpc_logrus.UnaryServerInterceptor(entry, logOpts...),
			grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandler(recoveryHandler)),
		),
		grpc_middleware.WithStreamServerChain(
			grpc_prometheus.StreamServerInterceptor,
			grpc_logrus.StreamServerInterceptor(entry, logOpts...),
			grpc_recovery.StreamServerInterceptor(grpc_recovery.WithRecoveryHandler(recoveryHandler)),
		),
	}

	creds, err := cfg.tlsCreds()
	if err != nil {
		return nil, errors.Wrap(err, "invalid tls cert or key file")
	} else if creds != nil {
		opts = append(opts, grpc.Creds(creds))
	}

	s := grpc.NewServer(opts...)
	pb.RegisterEchoServer(s, &server{delay: delay})
	grpc_prometheus.Register(s)
	return s, nil
}

// Listen opens the listener described by cfg.
func (cfg *Config) Listen() (net.Listener, error) {
	af := cfg.af()
	lis, err := net.Listen(af, cfg.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s:%s", af, cfg.Address)
	}
	if cfg.MaxConnections > 0 {
		lis = netutil.LimitListener(lis, cfg.MaxConnections)
	}
	return lis, nil
}

// Run serves until SIGINT or SIGTERM, then stops gracefully.
func (cfg Config) Run() error {
	s, err := NewServer(cfg)
	if err != nil {
		return err
	}
	lis, err := cfg.Listen()
	if err != nil {
		return err
	}
	cfg.serveMetrics()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.Infof("received %s, stopping", sig)
		go func() {
			time.Sleep(cfg.GracePeriod)
			s.Stop()
		}()
		s.GracefulStop()
	}()

	log.Infof("starting gRPC echo server on %s", lis.Addr())
	return s.Serve(lis)
}
