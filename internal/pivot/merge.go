package pivot

import (
	"math"
	"sort"

	"TrendCloud/internal/model"
)

const priceTieEpsilon = 1e-9

// Merge collapses same-kind candidates lying within proximity bars of each other,
// keeping the most extreme log price (max for HIGH, min for LOW). Ties go to the
// higher strength, then the lower index. Passes repeat until no two survivors of
// one kind are within proximity, so Merge(Merge(x)) == Merge(x).
// The result is sorted by index with HIGH before LOW on the same bar.
func Merge(cands []model.PivotCandidate, proximity int) []model.PivotCandidate {
	if proximity < 0 {
		proximity = 0
	}
	var out []model.PivotCandidate
	for _, kind := range []model.PivotKind{model.PivotHigh, model.PivotLow} {
		var group []model.PivotCandidate
		for _, c := range cands {
			if c.Kind == kind {
				group = append(group, c)
			}
		}
		sort.SliceStable(group, func(i, j int) bool { return group[i].Index < group[j].Index })
		for {
			merged := mergePass(group, proximity)
			if len(merged) == len(group) {
				break
			}
			group = merged
		}
		out = append(out, group...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Kind == model.PivotHigh && out[j].Kind == model.PivotLow
	})
	return out
}

// mergePass runs one left-to-right grouping over index-sorted candidates of a single kind.
func mergePass(sorted []model.PivotCandidate, proximity int) []model.PivotCandidate {
	var out []model.PivotCandidate
	for i := 0; i < len(sorted); {
		first := sorted[i]
		best := first
		j := i + 1
		for ; j < len(sorted) && sorted[j].Index-first.Index <= proximity; j++ {
			if better(sorted[j], best) {
				best = sorted[j]
			}
		}
		out = append(out, best)
		i = j
	}
	return out
}

// better reports whether a should replace b as the representative of a group.
func better(a, b model.PivotCandidate) bool {
	if math.Abs(a.LogPrice-b.LogPrice) > priceTieEpsilon {
		if a.Kind == model.PivotHigh {
			return a.LogPrice > b.LogPrice
		}
		return a.LogPrice < b.LogPrice
	}
	if a.Strength != b.Strength {
		return a.Strength > b.Strength
	}
	return a.Index < b.Index
}
