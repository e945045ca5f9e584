package pivot

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"TrendCloud/internal/model"
)

func candidate(logs []float64, idx int, kind model.PivotKind, method string, strength float64) model.PivotCandidate {
	return model.PivotCandidate{
		Index:    idx,
		Kind:     kind,
		Method:   method,
		Strength: strength,
		LogPrice: logs[idx],
	}
}

// localExtrema marks bars strictly above (or below) every other bar within w on each side.
func localExtrema(logs []float64, w int) []model.PivotCandidate {
	n := len(logs)
	method := fmt.Sprintf("local_w%d", w)
	var out []model.PivotCandidate
	for i := 1; i < n-1; i++ {
		lo, hi := max(0, i-w), min(n-1, i+w)
		isHigh, isLow := true, true
		for j := lo; j <= hi && (isHigh || isLow); j++ {
			if j == i {
				continue
			}
			if logs[j] >= logs[i] {
				isHigh = false
			}
			if logs[j] <= logs[i] {
				isLow = false
			}
		}
		if isHigh {
			out = append(out, candidate(logs, i, model.PivotHigh, method, float64(w)))
		}
		if isLow {
			out = append(out, candidate(logs, i, model.PivotLow, method, float64(w)))
		}
	}
	return out
}

// rollingExtremes marks bars equal to the max/min of the centered window of size w.
// talib windows trail, so the window centered on i spans [i-w/2, i+(w-1)/2];
// even windows extend one bar further back than forward.
func rollingExtremes(logs []float64, w int) []model.PivotCandidate {
	n := len(logs)
	if w < 2 || n < w {
		return nil
	}
	maxs := talib.Max(logs, w)
	mins := talib.Min(logs, w)
	method := fmt.Sprintf("rolling_w%d", w)
	strength := float64(w) / 3

	var out []model.PivotCandidate
	for i := 1; i < n-1; i++ {
		end := i + (w-1)/2
		if end >= n || end-w+1 < 0 {
			continue
		}
		if logs[i] == maxs[end] {
			out = append(out, candidate(logs, i, model.PivotHigh, method, strength))
		}
		if logs[i] == mins[end] {
			out = append(out, candidate(logs, i, model.PivotLow, method, strength))
		}
	}
	return out
}

// zigzag confirms the running extreme once price reverses by threshold in log space.
func zigzag(logs []float64, threshold float64) []model.PivotCandidate {
	n := len(logs)
	if n < 3 || threshold <= 0 || threshold >= 1 {
		return nil
	}
	up := math.Log(1 + threshold)
	down := math.Log(1 - threshold)
	method := fmt.Sprintf("zigzag_%.1fpct", threshold*100)
	strength := 1 / threshold

	var out []model.PivotCandidate
	ext := 0
	dir := 0
	for i := 1; i < n; i++ {
		change := logs[i] - logs[ext]
		switch dir {
		case 0:
			if change > up {
				dir, ext = 1, i
			} else if change < down {
				dir, ext = -1, i
			}
		case 1:
			if change < down {
				out = append(out, candidate(logs, ext, model.PivotHigh, method, strength))
				dir, ext = -1, i
			} else if logs[i] > logs[ext] {
				ext = i
			}
		case -1:
			if change > up {
				out = append(out, candidate(logs, ext, model.PivotLow, method, strength))
				dir, ext = 1, i
			} else if logs[i] < logs[ext] {
				ext = i
			}
		}
	}
	return out
}

// fractals marks bars that no neighbor within lookback strictly exceeds (HIGH)
// or strictly undercuts (LOW).
func fractals(logs []float64, lookback int) []model.PivotCandidate {
	n := len(logs)
	var out []model.PivotCandidate
	for i := lookback; i < n-lookback; i++ {
		isHigh, isLow := true, true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if logs[j] > logs[i] {
				isHigh = false
			}
			if logs[j] < logs[i] {
				isLow = false
			}
		}
		if isHigh {
			out = append(out, candidate(logs, i, model.PivotHigh, "fractal", 3))
		}
		if isLow {
			out = append(out, candidate(logs, i, model.PivotLow, "fractal", 3))
		}
	}
	return out
}

// slopeChanges marks sign flips of the window-average slope, placed at the window midpoint.
func slopeChanges(logs []float64, window int) []model.PivotCandidate {
	n := len(logs)
	if n <= window+2 {
		return nil
	}
	mom := talib.Mom(logs, window)
	slopes := make([]float64, n-window)
	for k := range slopes {
		slopes[k] = mom[k+window] / float64(window)
	}

	var out []model.PivotCandidate
	for k := 1; k < len(slopes)-1; k++ {
		idx := k + window/2
		prev, curr := slopes[k-1], slopes[k]
		switch {
		case prev > 0 && curr < 0:
			out = append(out, candidate(logs, idx, model.PivotHigh, "slope", 2))
		case prev < 0 && curr > 0:
			out = append(out, candidate(logs, idx, model.PivotLow, "slope", 2))
		}
	}
	return out
}

// gradient is a central-difference derivative with one-sided edges.
func gradient(v []float64) []float64 {
	n := len(v)
	g := make([]float64, n)
	if n < 2 {
		return g
	}
	g[0] = v[1] - v[0]
	g[n-1] = v[n-1] - v[n-2]
	for i := 1; i < n-1; i++ {
		g[i] = (v[i+1] - v[i-1]) / 2
	}
	return g
}

// derivatives marks first-derivative sign changes and bars of unusual curvature.
func derivatives(logs []float64) []model.PivotCandidate {
	n := len(logs)
	if n < 3 {
		return nil
	}
	d1 := gradient(logs)
	d2 := gradient(d1)
	// population std-dev over the full series; talib reports 0 for negligible variance
	sigma := talib.StdDev(d2, n, 1.0)[n-1]

	var out []model.PivotCandidate
	for i := 1; i < n-1; i++ {
		switch {
		case d1[i-1] > 0 && d1[i+1] < 0:
			out = append(out, candidate(logs, i, model.PivotHigh, "derivative", 1.5))
		case d1[i-1] < 0 && d1[i+1] > 0:
			out = append(out, candidate(logs, i, model.PivotLow, "derivative", 1.5))
		}
		if sigma > 0 && math.Abs(d2[i]) > 2*sigma {
			if d2[i] < 0 {
				out = append(out, candidate(logs, i, model.PivotHigh, "derivative", 1.5))
			} else if d2[i] > 0 {
				out = append(out, candidate(logs, i, model.PivotLow, "derivative", 1.5))
			}
		}
	}
	return out
}
