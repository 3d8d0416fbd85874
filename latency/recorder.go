package latency

import (
	"fmt"
	"math"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/pkg/errors"
)

var (
	// ErrIncompatibleLayout is returned when merging recorders built from
	// different layouts.
	ErrIncompatibleLayout = errors.New("incompatible histogram layouts")

	// ErrOutOfRange is returned when a duration exceeds the layout's
	// highest trackable value.
	ErrOutOfRange = errors.New("latency out of trackable range")
)

// Layout configures the bucketing of a Recorder. Every recorder that takes
// part in one run must be built from the same Layout.
type Layout struct {
	Lowest  time.Duration
	Highest time.Duration
	SigFigs int
}

// DefaultLayout tracks 1ns to 1h with three significant figures.
var DefaultLayout = Layout{
	Lowest:  time.Nanosecond,
	Highest: time.Hour,
	SigFigs: 3,
}

// Validate checks that the layout can build a histogram.
func (l Layout) Validate() error {
	if l.Lowest < 1 {
		return fmt.Errorf("lowest trackable latency must be at least 1ns, got %s", l.Lowest)
	}
	if l.Highest < 2*l.Lowest {
		return fmt.Errorf("highest trackable latency %s must be at least twice the lowest %s", l.Highest, l.Lowest)
	}
	if l.SigFigs < 1 || l.SigFigs > 5 {
		return fmt.Errorf("significant figures must be in [1,5], got %d", l.SigFigs)
	}
	return nil
}

// Recorder is a mergeable histogram of nanosecond latencies. A Recorder is
// not safe for concurrent use.
type Recorder struct {
	layout Layout
	hist   *hdrhistogram.Histogram
}

// New returns an empty Recorder. The layout is expected to be valid.
func New(layout Layout) *Recorder {
	return &Recorder{
		layout: layout,
		hist:   hdrhistogram.New(int64(layout.Lowest), int64(layout.Highest), layout.SigFigs),
	}
}

// Layout returns the layout the recorder was built from.
func (r *Recorder) Layout() Layout {
	return r.layout
}

// Record adds one observation.
func (r *Recorder) Record(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	if d > r.layout.Highest {
		return errors.Wrapf(ErrOutOfRange, "%s > %s", d, r.layout.Highest)
	}
	return r.hist.RecordValue(int64(d))
}

// Count returns the number of observations.
func (r *Recorder) Count() int64 {
	return r.hist.TotalCount()
}

// Percentile returns the midpoint of the first bucket whose cumulative
// count reaches p percent of all observations. An empty recorder reports 0.
func (r *Recorder) Percentile(p float64) time.Duration {
	total := r.hist.TotalCount()
	if total == 0 {
		return 0
	}
	p = math.Min(math.Max(p, 0), 100)
	target := int64(math.Ceil(p / 100 * float64(total)))
	if target < 1 {
		target = 1
	}

	var seen int64
	var last hdrhistogram.Bar
	for _, bar := range r.hist.Distribution() {
		if bar.Count == 0 {
			continue
		}
		seen += bar.Count
		last = bar
		if seen >= target {
			break
		}
	}
	return time.Duration((last.From + last.To) / 2)
}

// Compatible reports whether other can be merged into r.
func (r *Recorder) Compatible(other *Recorder) bool {
	return r.layout == other.layout
}

// Merge adds every observation of other into r. other is left unchanged.
func (r *Recorder) Merge(other *Recorder) error {
	if !r.Compatible(other) {
		return errors.Wrapf(ErrIncompatibleLayout, "%+v != %+v", r.layout, other.layout)
	}
	if dropped := r.hist.Merge(other.hist); dropped > 0 {
		return errors.Wrapf(ErrOutOfRange, "%d observations dropped during merge", dropped)
	}
	return nil
}
