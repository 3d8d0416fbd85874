// Package maxrps estimates the maximum throughput of an echo service, or
// of an intermediary in front of one, using the Universal Scalability Law.
//
// The benchmark is run once per concurrency level and the observed
// throughputs are fitted to
//
//	X(N) = lambda*N / (1 + sigma*(N-1) + kappa*N*(N-1))
//
// where sigma is the overhead of contention, kappa the overhead of
// crosstalk and lambda the unloaded throughput of a single worker.
package maxrps

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/buoyantio/strest-echo/client"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Config configures an estimate. Client.Workers is replaced by each level.
type Config struct {
	Client            client.Config
	ConcurrencyLevels string
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	cfg := Config{
		Client:            client.DefaultConfig(),
		ConcurrencyLevels: "1,5,10,20,30",
	}
	cfg.Client.Transactions = 100
	cfg.Client.Commands = 1
	return cfg
}

// ParseLevels reads a comma separated list of positive worker counts.
func ParseLevels(s string) ([]uint, error) {
	var levels []uint
	for _, l := range strings.Split(s, ",") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		level, err := strconv.ParseUint(l, 10, 32)
		if err != nil || level == 0 {
			return nil, errors.Errorf("unknown concurrency level: %q", l)
		}
		levels = append(levels, uint(level))
	}
	if len(levels) < 3 {
		return nil, errors.New("at least three concurrency levels are needed to fit three parameters")
	}
	return levels, nil
}

// Estimate is a fitted scalability model.
type Estimate struct {
	Sigma  float64
	Kappa  float64
	Lambda float64

	MaxConcurrency float64
	MaxThroughput  float64
}

// Predict returns the modeled throughput at concurrency n.
func (e Estimate) Predict(n float64) float64 {
	return concurrencyToThroughput(n, e.Sigma, e.Kappa, e.Lambda)
}

// Measure runs the benchmark at each level and returns the aggregate
// throughput observed at each one.
func Measure(ctx context.Context, cfg Config, levels []uint, factory client.ConnectionFactory) ([]float64, error) {
	throughputs := make([]float64, len(levels))
	for i, level := range levels {
		run := cfg.Client
		run.Workers = level

		res, err := client.Execute(ctx, run, factory)
		if err != nil {
			return nil, errors.Wrapf(err, "concurrency level %d", level)
		}
		throughputs[i] = res.Throughput
		log.Debugf("%d %f", level, res.Throughput)
	}
	return throughputs, nil
}

// Fit finds the USL parameters minimizing the squared error against the
// observed throughputs.
func Fit(levels []uint, throughputs []float64) (Estimate, error) {
	if len(levels) != len(throughputs) {
		return Estimate{}, errors.Errorf("%d levels but %d throughputs", len(levels), len(throughputs))
	}

	// Fit in units of the highest observation so the tolerances below do
	// not depend on how fast the service is.
	var scale float64
	dense := make([]float64, 0, 2*len(levels))
	for i, l := range levels {
		dense = append(dense, float64(l), throughputs[i])
		scale = math.Max(scale, throughputs[i])
	}
	if scale <= 0 {
		return Estimate{}, errors.New("no throughput was observed")
	}

	observations := mat.NewDense(len(levels), 2, dense)
	concurrency := mat.Col(nil, 0, observations)
	throughput := mat.Col(nil, 1, observations)
	for i := range throughput {
		throughput[i] /= scale
	}

	f := func(x []float64) float64 {
		sigma, kappa, lambda := optvarsToGreek(x)
		var mismatch float64
		for i, n := range concurrency {
			pred := concurrencyToThroughput(n, sigma, kappa, lambda)
			mismatch += (pred - throughput[i]) * (pred - throughput[i])
		}
		return mismatch
	}

	grad := func(grad, x []float64) {
		for i := range grad {
			grad[i] = 0
		}
		sigma, kappa, lambda := optvarsToGreek(x)
		dSigmaDX, dKappaDX, dLambdaDX := optvarsToGreekDeriv(x)
		for i, n := range concurrency {
			pred := concurrencyToThroughput(n, sigma, kappa, lambda)
			dMismatchDPred := 2 * (pred - throughput[i])
			dPredDSigma, dPredDKappa, dPredDLambda := concurrencyToThroughputDeriv(n, sigma, kappa, lambda)

			grad[0] += dMismatchDPred * dPredDSigma * dSigmaDX
			grad[1] += dMismatchDPred * dPredDKappa * dKappaDX
			grad[2] += dMismatchDPred * dPredDLambda * dLambdaDX
		}
	}

	problem := optimize.Problem{Func: f, Grad: grad}
	settings := &optimize.Settings{
		GradientThreshold: 1e-8,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: 50,
		},
	}

	// start from a lightly loaded system whose single worker throughput
	// matches the first observation
	initX := []float64{math.Log(0.01), math.Log(0.0001), math.Log(throughput[0] / concurrency[0])}
	result, err := optimize.Minimize(problem, initX, settings, nil)
	if result == nil {
		return Estimate{}, errors.Wrap(err, "fitting scalability model")
	}
	if err != nil {
		log.Warnf("optimization stopped early: %v", err)
	}

	sigma, kappa, lambda := optvarsToGreek(result.X)
	est := Estimate{Sigma: sigma, Kappa: kappa, Lambda: lambda * scale}
	est.MaxConcurrency = maxConcurrency(sigma, kappa)
	est.MaxThroughput = est.Predict(est.MaxConcurrency)
	return est, nil
}

// maxConcurrency is where the USL curve peaks. A contention overhead at
// or above one means more workers never help.
func maxConcurrency(sigma, kappa float64) float64 {
	if sigma >= 1 || kappa <= 0 {
		return 1
	}
	return math.Max(1, math.Floor(math.Sqrt((1-sigma)/kappa)))
}

// Write prints the estimate the way the benchmark reports are printed.
func (e Estimate) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, `sigma (the overhead of contention): %f
kappa (the overhead of crosstalk): %f
lambda (unloaded performance): %f
maxConcurrency: %f
maxRps: %f
`, e.Sigma, e.Kappa, e.Lambda, e.MaxConcurrency, e.MaxThroughput)
	return err
}

// Run dials cfg.Client.Address, measures every level, fits the model and
// writes the estimate to out.
func (cfg Config) Run(ctx context.Context, out io.Writer) error {
	levels, err := ParseLevels(cfg.ConcurrencyLevels)
	if err != nil {
		return err
	}
	dialer, err := client.NewDialer(cfg.Client)
	if err != nil {
		return err
	}

	throughputs, err := Measure(ctx, cfg, levels, dialer)
	if err != nil {
		return err
	}
	est, err := Fit(levels, throughputs)
	if err != nil {
		return err
	}

	if log.GetLevel() >= log.DebugLevel {
		for i, v := range throughputs {
			log.Debugf("true %+v pred %+v", v, est.Predict(float64(levels[i])))
		}
	}
	return est.Write(out)
}

func optvarsToGreek(x []float64) (sigma, kappa, lambda float64) {
	return math.Exp(x[0]), math.Exp(x[1]), math.Exp(x[2])
}

// The parameters are optimized in log space to keep them positive, so the
// derivative of each with respect to its variable is itself.
func optvarsToGreekDeriv(x []float64) (dSigmaDX, dKappaDX, dLambdaDX float64) {
	return math.Exp(x[0]), math.Exp(x[1]), math.Exp(x[2])
}

func concurrencyToThroughput(n, sigma, kappa, lambda float64) float64 {
	return lambda * n / (1 + sigma*(n-1) + kappa*n*(n-1))
}

func concurrencyToThroughputDeriv(n, sigma, kappa, lambda float64) (dSigma, dKappa, dLambda float64) {
	num := lambda * n
	denom := 1 + sigma*(n-1) + kappa*n*(n-1)
	dSigma = -(num / (denom * denom)) * (n - 1)
	dKappa = -(num / (denom * denom)) * (n - 1) * n
	dLambda = n / denom
	return dSigma, dKappa, dLambda
}
