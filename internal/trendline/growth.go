package trendline

import (
	"math"
	"sort"
	"time"

	"TrendCloud/internal/calculator"
	"TrendCloud/internal/model"
)

// Growth is the state of one seed after an iteration: the admitted pivot
// positions, the line fitted through them and how many iterations ran.
// Each iteration produces a new Growth; values are never modified in place.
type Growth struct {
	Members    []int
	Line       calculator.Line
	Iterations int
}

// Grow starts from the seed pair and repeatedly fits a weighted log-price line,
// admitting every pivot within tolerance, until nothing new is admitted or the
// iteration cap is hit. weights may be nil for uniform weighting.
func Grow(seed Pair, pivots []model.Pivot, weights []float64, origin time.Time, opts Options) (Growth, error) {
	opts = opts.withDefaults()
	if weights != nil && len(weights) != len(pivots) {
		weights = nil
	}
	xs, ys := coordinates(pivots, origin)
	rw := regressionWeights(weights, opts.WeightFactor)
	logTol := math.Log(1 + opts.Tolerance)

	g := Growth{Members: []int{seed.A, seed.B}}
	line, err := fitMembers(g.Members, xs, ys, rw)
	if err != nil {
		return Growth{}, err
	}
	g.Line = line

	for g.Iterations < opts.MaxIterations {
		iterations := g.Iterations + 1
		admitted := admit(g, xs, ys, weights, logTol)
		if len(admitted) == len(g.Members) {
			g = Growth{Members: g.Members, Line: g.Line, Iterations: iterations}
			break
		}
		line, err := fitMembers(admitted, xs, ys, rw)
		if err != nil {
			return Growth{}, err
		}
		g = Growth{Members: admitted, Line: line, Iterations: iterations}
	}
	return g, nil
}

// admit returns the current members plus every outside pivot whose log residual is
// within tolerance, sorted by position. With time weights, tolerance scales by (2 - w).
func admit(g Growth, xs, ys, weights []float64, logTol float64) []int {
	in := make(map[int]bool, len(g.Members))
	for _, m := range g.Members {
		in[m] = true
	}
	out := append([]int(nil), g.Members...)
	for i := range xs {
		if in[i] {
			continue
		}
		tol := logTol
		if weights != nil {
			tol *= 2 - weights[i]
		}
		if math.Abs(ys[i]-g.Line.At(xs[i])) <= tol {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func fitMembers(members []int, xs, ys, rw []float64) (calculator.Line, error) {
	mx := make([]float64, len(members))
	my := make([]float64, len(members))
	var mw []float64
	if rw != nil {
		mw = make([]float64, len(members))
	}
	for k, m := range members {
		mx[k] = xs[m]
		my[k] = ys[m]
		if rw != nil {
			mw[k] = rw[m]
		}
	}
	return calculator.LinearRegression(mx, my, mw)
}

func coordinates(pivots []model.Pivot, origin time.Time) (xs, ys []float64) {
	xs = make([]float64, len(pivots))
	ys = make([]float64, len(pivots))
	for i, p := range pivots {
		xs[i] = p.Time.Sub(origin).Hours() / 24
		ys[i] = p.LogPrice
	}
	return xs, ys
}

func regressionWeights(weights []float64, factor float64) []float64 {
	if weights == nil {
		return nil
	}
	rw := make([]float64, len(weights))
	for i, w := range weights {
		rw[i] = math.Pow(w, factor)
	}
	return rw
}
