package calculator

import (
	"math"
	"time"

	"TrendCloud/internal/model"
)

// TimeWeight returns the exponential-decay weight of an observation at t relative
// to ref: 0.5^(daysAgo/halfLifeDays), floored at minWeight and capped at 1.
func TimeWeight(t, ref time.Time, halfLifeDays, minWeight float64) float64 {
	daysAgo := ref.Sub(t).Hours() / 24
	if daysAgo < 0 {
		daysAgo = 0
	}
	w := math.Exp(-daysAgo * math.Ln2 / halfLifeDays)
	return Clamp(w, minWeight, 1)
}

// TimeWeights computes a decay weight for each pivot. Returns nil when decay is
// disabled (halfLifeDays <= 0), which callers treat as uniform weighting.
func TimeWeights(pivots []model.Pivot, ref time.Time, halfLifeDays, minWeight float64) []float64 {
	if halfLifeDays <= 0 || len(pivots) == 0 {
		return nil
	}
	weights := make([]float64, len(pivots))
	for i, p := range pivots {
		weights[i] = TimeWeight(p.Time, ref, halfLifeDays, minWeight)
	}
	return weights
}
