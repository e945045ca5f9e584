package calculator

import (
	"fmt"

	"TrendCloud/internal/model"
)

// Line is the result of a least-squares fit y = Slope*x + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

// At evaluates the line at x.
func (l Line) At(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// LinearRegression fits a weighted least-squares line through (xs, ys).
// A nil ws means every point has weight 1. Returns model.ErrDegenerateFit when
// all x values coincide.
func LinearRegression(xs, ys, ws []float64) (Line, error) {
	if len(xs) != len(ys) || (ws != nil && len(ws) != len(xs)) {
		return Line{}, fmt.Errorf("regression: mismatched input lengths %d/%d/%d", len(xs), len(ys), len(ws))
	}
	if len(xs) < 2 {
		return Line{}, fmt.Errorf("%w: need 2 points, got %d", model.ErrDegenerateFit, len(xs))
	}
	weight := func(i int) float64 {
		if ws == nil {
			return 1
		}
		return ws[i]
	}

	var sumW, sumX, sumY float64
	for i := range xs {
		w := weight(i)
		sumW += w
		sumX += w * xs[i]
		sumY += w * ys[i]
	}
	if sumW <= 0 {
		return Line{}, fmt.Errorf("%w: zero total weight", model.ErrDegenerateFit)
	}
	meanX := sumX / sumW
	meanY := sumY / sumW

	var num, den float64
	for i := range xs {
		w := weight(i)
		dx := xs[i] - meanX
		num += w * dx * (ys[i] - meanY)
		den += w * dx * dx
	}
	if den <= 0 {
		return Line{}, fmt.Errorf("%w: identical x values", model.ErrDegenerateFit)
	}

	slope := num / den
	line := Line{Slope: slope, Intercept: meanY - slope*meanX}

	var ssRes, ssTot float64
	for i := range xs {
		w := weight(i)
		r := ys[i] - line.At(xs[i])
		d := ys[i] - meanY
		ssRes += w * r * r
		ssTot += w * d * d
	}
	if ssTot <= 1e-18 {
		// all y equal: the horizontal line is exact
		line.RSquared = 1
	} else {
		line.RSquared = Clamp(1-ssRes/ssTot, 0, 1)
	}
	return line, nil
}
