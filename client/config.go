package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/buoyantio/strest-echo/latency"
)

// Mode selects how a worker executes the commands of a transaction.
type Mode int

const (
	// Unary issues one blocking request/response call per command.
	Unary Mode = iota
	// Streaming sends all commands of a transaction over one paced
	// bidirectional stream.
	Streaming
)

func (m Mode) String() string {
	switch m {
	case Unary:
		return "unary"
	case Streaming:
		return "streaming"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "unary" or "streaming".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "unary":
		return Unary, nil
	case "streaming", "stream":
		return Streaming, nil
	}
	return Unary, fmt.Errorf("unknown mode %q, expected unary or streaming", s)
}

// Format selects how the final report is rendered.
type Format int

const (
	// Human renders labeled text lines.
	Human Format = iota
	// Structured renders an indented JSON document.
	Structured
)

func (f Format) String() string {
	switch f {
	case Human:
		return "human"
	case Structured:
		return "json"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Config configures one benchmark run. It is read by every worker and
// must not change while the run is in progress.
type Config struct {
	Address           string
	UseUnixAddr       bool
	TLSTrustChainFile string
	ConnectTimeout    time.Duration

	Workers      uint
	Transactions uint
	Commands     uint
	Mode         Mode
	Format       Format

	// Window is the number of stream messages allowed in flight before the
	// sender waits for a response.
	Window uint
	// TransactionTimeout bounds a single streaming transaction. Zero means
	// no bound.
	TransactionTimeout time.Duration
	// TargetTps limits each worker to this many transactions per second.
	// Zero means unlimited.
	TargetTps float64
	// FailFast cancels every worker as soon as one fails.
	FailFast bool

	MetricAddr string
	Layout     latency.Layout
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		Address:        "localhost:50051",
		ConnectTimeout: 5 * time.Second,
		Workers:        10,
		Transactions:   10,
		Commands:       5,
		Mode:           Unary,
		Format:         Human,
		Window:         1,
		Layout:         latency.DefaultLayout,
	}
}

// Validate reports the first setting that cannot be used for a run.
func (cfg Config) Validate() error {
	if cfg.Window < 1 {
		return fmt.Errorf("window must be at least 1")
	}
	if cfg.TargetTps < 0 {
		return fmt.Errorf("targetTps cannot be negative")
	}
	if cfg.Mode != Unary && cfg.Mode != Streaming {
		return fmt.Errorf("unknown mode %s", cfg.Mode)
	}
	if cfg.Format != Human && cfg.Format != Structured {
		return fmt.Errorf("unknown format %s", cfg.Format)
	}
	if err := cfg.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid histogram layout: %v", err)
	}
	return nil
}
