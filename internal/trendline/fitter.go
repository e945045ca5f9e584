package trendline

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"TrendCloud/internal/model"
)

var trendlineNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("trendcloud.trendline"))

// Options configures trendline growth and selection.
type Options struct {
	Tolerance      float64 // admission tolerance as a price fraction, 0.02 = 2%
	MaxIterations  int
	MinPoints      int
	MaxLines       int
	DedupTolerance float64 // relative slope/intercept difference treated as duplicate
	WeightFactor   float64 // exponent applied to time weights in the regression
}

// DefaultOptions returns the standard fitter configuration.
func DefaultOptions() Options {
	return Options{
		Tolerance:      0.02,
		MaxIterations:  100,
		MinPoints:      2,
		MaxLines:       30,
		DedupTolerance: 0.01,
		WeightFactor:   2.0,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = def.Tolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = def.MaxIterations
	}
	if o.MinPoints < 2 {
		o.MinPoints = def.MinPoints
	}
	if o.MaxLines <= 0 {
		o.MaxLines = def.MaxLines
	}
	if o.DedupTolerance <= 0 {
		o.DedupTolerance = def.DedupTolerance
	}
	if o.WeightFactor <= 0 {
		o.WeightFactor = def.WeightFactor
	}
	return o
}

// Fitter grows log-price trendlines through pivots.
type Fitter struct {
	opts Options
}

// NewFitter creates a fitter; unset options take their defaults.
func NewFitter(opts Options) *Fitter {
	return &Fitter{opts: opts.withDefaults()}
}

// Options returns the effective configuration.
func (f *Fitter) Options() Options {
	return f.opts
}

// Fit returns the ranked, deduplicated trendlines through pivots. pivots must be
// sorted by time. weights holds one time-decay weight per pivot, or nil.
func (f *Fitter) Fit(pivots []model.Pivot, weights []float64) []model.Trendline {
	lines, _ := f.FitWith(pivots, weights, nil)
	return lines
}

// FitWith is Fit with an explicit consumed-pair set. Seeds found in used are
// skipped. The returned set is a copy of used extended with every pair claimed
// by an emitted line; used itself is not modified.
func (f *Fitter) FitWith(pivots []model.Pivot, weights []float64, used PairSet) ([]model.Trendline, PairSet) {
	consumed := used.Clone()
	if len(pivots) < 2 {
		return nil, consumed
	}
	if weights != nil && len(weights) != len(pivots) {
		weights = nil
	}
	origin := pivots[0].Time

	var lines []model.Trendline
	for _, seed := range seedPairs(pivots) {
		if consumed.Has(seed.A, seed.B) {
			continue
		}
		g, err := Grow(seed, pivots, weights, origin, f.opts)
		if err != nil {
			// ErrDegenerateFit: both seed pivots share a timestamp
			continue
		}
		if len(g.Members) < f.opts.MinPoints {
			continue
		}
		lines = append(lines, build(g, pivots, weights, origin))
		consumed.AddAll(g.Members)
		if len(lines) >= f.opts.MaxLines {
			break
		}
	}

	rank(lines)
	lines = dedup(lines, f.opts.DedupTolerance)
	if len(lines) > f.opts.MaxLines {
		lines = lines[:f.opts.MaxLines]
	}
	return lines, consumed
}

// seedPairs enumerates every pivot pair, widest time separation first, ties by position.
func seedPairs(pivots []model.Pivot) []Pair {
	pairs := make([]Pair, 0, len(pivots)*(len(pivots)-1)/2)
	for i := 0; i < len(pivots); i++ {
		for j := i + 1; j < len(pivots); j++ {
			pairs = append(pairs, Pair{A: i, B: j})
		}
	}
	span := func(p Pair) time.Duration {
		d := pivots[p.B].Time.Sub(pivots[p.A].Time)
		if d < 0 {
			d = -d
		}
		return d
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		sa, sb := span(pairs[a]), span(pairs[b])
		if sa != sb {
			return sa > sb
		}
		if pairs[a].A != pairs[b].A {
			return pairs[a].A < pairs[b].A
		}
		return pairs[a].B < pairs[b].B
	})
	return pairs
}

func build(g Growth, pivots []model.Pivot, weights []float64, origin time.Time) model.Trendline {
	points := make([]model.Pivot, len(g.Members))
	ids := make([]string, len(g.Members))
	var highs, lows int
	var devSum, weightSum float64
	for k, m := range g.Members {
		p := pivots[m]
		points[k] = p
		ids[k] = p.ID
		if p.Kind == model.PivotHigh {
			highs++
		} else {
			lows++
		}
		x := p.Time.Sub(origin).Hours() / 24
		devSum += math.Abs(p.LogPrice - g.Line.At(x))
		if weights != nil {
			weightSum += weights[m]
		} else {
			weightSum++
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })

	tl := model.Trendline{
		ID:               uuid.NewSHA1(trendlineNamespace, []byte(strings.Join(ids, ","))).String(),
		Points:           points,
		Origin:           origin,
		Slope:            g.Line.Slope,
		Intercept:        g.Line.Intercept,
		RSquared:         g.Line.RSquared,
		StartTime:        points[0].Time,
		EndTime:          points[len(points)-1].Time,
		DailyGrowthRate:  math.Exp(g.Line.Slope) - 1,
		Iterations:       g.Iterations,
		AvgDeviation:     devSum / float64(len(points)),
		WeightedStrength: weightSum,
		AvgWeight:        weightSum / float64(len(points)),
	}

	switch {
	case highs > lows:
		tl.Kind = model.Resistance
	case lows > highs:
		tl.Kind = model.Support
	case tl.Slope > 0:
		tl.Kind = model.Support
	default:
		tl.Kind = model.Resistance
	}

	// secant through the line's prices at the first and last member
	x1 := tl.DaysSinceOrigin(tl.StartTime)
	x2 := tl.DaysSinceOrigin(tl.EndTime)
	p1, p2 := math.Exp(g.Line.At(x1)), math.Exp(g.Line.At(x2))
	if x2 > x1 {
		tl.RegularSlope = (p2 - p1) / (x2 - x1)
	}
	tl.RegularIntercept = p1 - tl.RegularSlope*x1
	return tl
}

// rank orders lines by point count, then R², both descending.
func rank(lines []model.Trendline) {
	sort.SliceStable(lines, func(i, j int) bool {
		si, sj := lines[i].Strength(), lines[j].Strength()
		if si != sj {
			return si > sj
		}
		return lines[i].RSquared > lines[j].RSquared
	})
}

// dedup drops lines whose slope and intercept both match a kept line within tol
// (relative), keeping whichever has the larger strength x R².
func dedup(lines []model.Trendline, tol float64) []model.Trendline {
	var kept []model.Trendline
	for _, tl := range lines {
		dup := -1
		for k := range kept {
			if relClose(tl.Slope, kept[k].Slope, tol) && relClose(tl.Intercept, kept[k].Intercept, tol) {
				dup = k
				break
			}
		}
		if dup < 0 {
			kept = append(kept, tl)
			continue
		}
		if quality(tl) > quality(kept[dup]) {
			kept[dup] = tl
		}
	}
	rank(kept)
	return kept
}

func quality(tl model.Trendline) float64 {
	return float64(tl.Strength()) * tl.RSquared
}

func relClose(a, b, tol float64) bool {
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return true
	}
	return math.Abs(a-b) <= tol*scale
}
