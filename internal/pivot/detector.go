package pivot

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"TrendCloud/internal/calculator"
	"TrendCloud/internal/model"
)

// Method names one detection heuristic.
type Method string

const (
	MethodLocal      Method = "local"
	MethodRolling    Method = "rolling"
	MethodZigzag     Method = "zigzag"
	MethodFractal    Method = "fractal"
	MethodSlope      Method = "slope"
	MethodDerivative Method = "derivative"
)

// AllMethods is the full six-method ensemble in evaluation order.
var AllMethods = []Method{MethodLocal, MethodRolling, MethodZigzag, MethodFractal, MethodSlope, MethodDerivative}

// metaPeriod is the SMA period used for volume ratio and deviation metadata.
const metaPeriod = 20

var pivotNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("trendcloud.pivot"))

// Options configures the detector. Zero-valued slices fall back to the defaults.
type Options struct {
	Methods          []Method
	LocalWindows     []int
	RollingWindows   []int
	ZigzagThresholds []float64
	FractalLookback  int
	SlopeWindow      int
	Proximity        int
}

// DefaultOptions returns the canonical six-method configuration.
func DefaultOptions() Options {
	return Options{
		Methods:          AllMethods,
		LocalWindows:     []int{2, 3, 4, 5, 7, 10, 15},
		RollingWindows:   []int{3, 5, 7, 10, 15, 20},
		ZigzagThresholds: []float64{0.01, 0.015, 0.02, 0.03, 0.05, 0.08},
		FractalLookback:  2,
		SlopeWindow:      3,
		Proximity:        3,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if len(o.Methods) == 0 {
		o.Methods = def.Methods
	}
	if len(o.LocalWindows) == 0 {
		o.LocalWindows = def.LocalWindows
	}
	if len(o.RollingWindows) == 0 {
		o.RollingWindows = def.RollingWindows
	}
	if len(o.ZigzagThresholds) == 0 {
		o.ZigzagThresholds = def.ZigzagThresholds
	}
	if o.FractalLookback <= 0 {
		o.FractalLookback = def.FractalLookback
	}
	if o.SlopeWindow <= 0 {
		o.SlopeWindow = def.SlopeWindow
	}
	if o.Proximity <= 0 {
		o.Proximity = def.Proximity
	}
	return o
}

// Detector finds swing highs and lows in a bar series.
type Detector struct {
	opts Options
}

// NewDetector creates a detector; unset options take their defaults.
func NewDetector(opts Options) *Detector {
	return &Detector{opts: opts.withDefaults()}
}

// Candidates runs every enabled heuristic on the log-price array and returns the raw hits.
func (d *Detector) Candidates(logs []float64) []model.PivotCandidate {
	var out []model.PivotCandidate
	for _, m := range d.opts.Methods {
		switch m {
		case MethodLocal:
			for _, w := range d.opts.LocalWindows {
				out = append(out, localExtrema(logs, w)...)
			}
		case MethodRolling:
			for _, w := range d.opts.RollingWindows {
				out = append(out, rollingExtremes(logs, w)...)
			}
		case MethodZigzag:
			for _, t := range d.opts.ZigzagThresholds {
				out = append(out, zigzag(logs, t)...)
			}
		case MethodFractal:
			out = append(out, fractals(logs, d.opts.FractalLookback)...)
		case MethodSlope:
			out = append(out, slopeChanges(logs, d.opts.SlopeWindow)...)
		case MethodDerivative:
			out = append(out, derivatives(logs)...)
		}
	}
	return out
}

// Detect returns the merged pivots of bars, sorted by time. timeframe is informational.
func (d *Detector) Detect(bars []model.Bar, timeframe string) ([]model.Pivot, error) {
	for i, b := range bars {
		if b.Close <= 0 || math.IsNaN(b.Close) {
			return nil, fmt.Errorf("%w: bar %d has close %v", model.ErrInvalidInput, i, b.Close)
		}
	}
	if len(bars) < 3 {
		return nil, nil
	}

	logs := calculator.LogCloses(bars)
	merged := Merge(d.Candidates(logs), d.opts.Proximity)

	volMA := calculator.SMASeries(calculator.Volumes(bars), metaPeriod)
	closeMA := calculator.SMASeries(calculator.Closes(bars), metaPeriod)

	pivots := make([]model.Pivot, 0, len(merged))
	for _, c := range merged {
		b := bars[c.Index]
		pivots = append(pivots, model.Pivot{
			ID:          pivotID(c.Kind, b.Time),
			Index:       c.Index,
			Time:        b.Time,
			Price:       b.Close,
			LogPrice:    c.LogPrice,
			Kind:        c.Kind,
			Strength:    c.Strength,
			Method:      c.Method,
			Volume:      b.Volume,
			VolumeRatio: calculator.RatioToMA(b.Volume, volMA, c.Index),
			Deviation:   calculator.DeviationFromMA(b.Close, closeMA, c.Index),
		})
	}
	return pivots, nil
}

func pivotID(kind model.PivotKind, t time.Time) string {
	return uuid.NewSHA1(pivotNamespace, []byte(string(kind)+"|"+t.UTC().Format(time.RFC3339Nano))).String()
}
