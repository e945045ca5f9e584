package pivot

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"TrendCloud/internal/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func barsFromLogs(logs []float64) []model.Bar {
	bars := make([]model.Bar, len(logs))
	for i, l := range logs {
		c := math.Exp(l)
		bars[i] = model.Bar{Time: day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 500 + float64(i)}
	}
	return bars
}

func sineLogs(n int) []float64 {
	logs := make([]float64, n)
	for i := range logs {
		logs[i] = math.Log(100) + 0.1*math.Sin(2*math.Pi*float64(i)/20)
	}
	return logs
}

func indicesOf(pivots []model.Pivot, kind model.PivotKind) []int {
	var out []int
	for _, p := range pivots {
		if p.Kind == kind {
			out = append(out, p.Index)
		}
	}
	return out
}

func TestDetect_SineSwings(t *testing.T) {
	bars := barsFromLogs(sineLogs(80))
	pivots, err := NewDetector(DefaultOptions()).Detect(bars, "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := indicesOf(pivots, model.PivotHigh), []int{5, 25, 45, 65}; !reflect.DeepEqual(got, want) {
		t.Errorf("highs = %v, want %v", got, want)
	}
	if got, want := indicesOf(pivots, model.PivotLow), []int{15, 35, 55, 75}; !reflect.DeepEqual(got, want) {
		t.Errorf("lows = %v, want %v", got, want)
	}

	for i, p := range pivots {
		if i > 0 && p.Time.Before(pivots[i-1].Time) {
			t.Fatalf("pivot %d out of time order", i)
		}
		// the 1% zigzag carries the largest strength among tied candidates
		if p.Method != "zigzag_1.0pct" || math.Abs(p.Strength-100) > 1e-9 {
			t.Errorf("pivot %d: method %s strength %.2f", i, p.Method, p.Strength)
		}
		b := bars[p.Index]
		if p.Price != b.Close || !p.Time.Equal(b.Time) || p.Volume != b.Volume {
			t.Errorf("pivot %d does not carry its bar", i)
		}
		if p.ID == "" {
			t.Errorf("pivot %d has no id", i)
		}
	}

	// SMA(20) metadata is zero before warm-up and populated after
	if pivots[0].VolumeRatio != 0 || pivots[0].Deviation != 0 {
		t.Errorf("first pivot metadata should be empty: %+v", pivots[0])
	}
	last := pivots[len(pivots)-1]
	if last.VolumeRatio <= 0 {
		t.Errorf("late pivot should have a volume ratio, got %.4f", last.VolumeRatio)
	}
	if last.Deviation >= 0 {
		t.Errorf("trough should sit below its SMA, got deviation %.4f", last.Deviation)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	bars := barsFromLogs(sineLogs(60))
	d := NewDetector(DefaultOptions())
	a, _ := d.Detect(bars, "1d")
	b, _ := d.Detect(bars, "1d")
	if !reflect.DeepEqual(a, b) {
		t.Fatal("detect is not deterministic")
	}
}

func TestDetect_Guards(t *testing.T) {
	d := NewDetector(Options{})
	if pivots, err := d.Detect(barsFromLogs([]float64{1, 2}), "1d"); err != nil || pivots != nil {
		t.Errorf("two bars: got %v, %v", pivots, err)
	}
	bars := barsFromLogs(sineLogs(10))
	bars[4].Close = 0
	if _, err := d.Detect(bars, "1d"); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDetect_MethodSubset(t *testing.T) {
	bars := barsFromLogs(sineLogs(80))
	pivots, err := NewDetector(Options{Methods: []Method{MethodFractal}}).Detect(bars, "1d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pivots) == 0 {
		t.Fatal("expected fractal pivots")
	}
	for _, p := range pivots {
		if p.Method != "fractal" || p.Strength != 3 {
			t.Errorf("unexpected pivot %+v", p)
		}
	}
}

func TestGenerators(t *testing.T) {
	type hit struct {
		idx  int
		kind model.PivotKind
	}
	collect := func(cands []model.PivotCandidate) []hit {
		var out []hit
		for _, c := range cands {
			out = append(out, hit{c.Index, c.Kind})
		}
		return out
	}
	steps := []float64{1, 2, 3, 2, 1, 2, 3, 3, 1}
	tests := []struct {
		name string
		got  []model.PivotCandidate
		want []hit
	}{
		{"local", localExtrema(steps, 2), []hit{{2, model.PivotHigh}, {4, model.PivotLow}}},
		{"rolling", rollingExtremes(steps, 3), []hit{{2, model.PivotHigh}, {4, model.PivotLow}, {6, model.PivotHigh}, {7, model.PivotHigh}}},
		{"rolling even window", rollingExtremes([]float64{1, 2, 3, 1, 1, 4}, 4), []hit{{2, model.PivotHigh}, {3, model.PivotLow}, {4, model.PivotLow}}},
		{"fractal", fractals(steps, 2), []hit{{2, model.PivotHigh}, {4, model.PivotLow}, {6, model.PivotHigh}}},
		{"zigzag", zigzag([]float64{0, 0.06, 0.1, 0.04, 0.03, 0.09}, 0.05), []hit{{2, model.PivotHigh}, {4, model.PivotLow}}},
		{"slope", slopeChanges([]float64{0, 1, 2, 3, 2, 1, 0, 1, 2, 3}, 3), []hit{{3, model.PivotHigh}, {6, model.PivotLow}}},
		{"derivative", derivatives([]float64{0, 1, 2, 1, 0}), []hit{{2, model.PivotHigh}, {2, model.PivotHigh}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := collect(tt.got); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	z := zigzag([]float64{0, 0.06, 0.1, 0.04}, 0.05)
	if z[0].Method != "zigzag_5.0pct" || math.Abs(z[0].Strength-20) > 1e-9 {
		t.Errorf("zigzag tag %s strength %.2f", z[0].Method, z[0].Strength)
	}
	if r := rollingExtremes(steps, 3); r[0].Method != "rolling_w3" || r[0].Strength != 1 {
		t.Errorf("rolling tag %s strength %.2f", r[0].Method, r[0].Strength)
	}
	if rollingExtremes([]float64{1, 2}, 3) != nil {
		t.Error("rolling window longer than series should yield nothing")
	}
}

func TestMerge_KeepsExtremeAndBreaksTies(t *testing.T) {
	cands := []model.PivotCandidate{
		{Index: 10, Kind: model.PivotHigh, Method: "a", Strength: 1, LogPrice: 5.0},
		{Index: 12, Kind: model.PivotHigh, Method: "b", Strength: 1, LogPrice: 5.2},
		{Index: 13, Kind: model.PivotHigh, Method: "c", Strength: 9, LogPrice: 5.1},
		{Index: 11, Kind: model.PivotLow, Method: "d", Strength: 2, LogPrice: 4.0},
		{Index: 11, Kind: model.PivotLow, Method: "e", Strength: 5, LogPrice: 4.0},
		{Index: 30, Kind: model.PivotLow, Method: "f", Strength: 5, LogPrice: 3.0},
		{Index: 32, Kind: model.PivotLow, Method: "g", Strength: 5, LogPrice: 3.0},
	}
	got := Merge(cands, 3)
	want := []string{"e", "b", "f"}
	if len(got) != len(want) {
		t.Fatalf("got %d survivors, want %d: %+v", len(got), len(want), got)
	}
	for i, m := range want {
		if got[i].Method != m {
			t.Errorf("survivor %d = %s, want %s", i, got[i].Method, m)
		}
	}
}

func TestMerge_Idempotent(t *testing.T) {
	// a chain of highs one bar apart spans more than the proximity
	var cands []model.PivotCandidate
	for i := 0; i < 12; i++ {
		cands = append(cands,
			model.PivotCandidate{Index: i, Kind: model.PivotHigh, Strength: 1, LogPrice: float64(i % 5)},
			model.PivotCandidate{Index: i * 2, Kind: model.PivotLow, Strength: float64(i % 3), LogPrice: -float64(i % 4)},
		)
	}
	once := Merge(cands, 3)
	twice := Merge(once, 3)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent:\n%v\n%v", once, twice)
	}
	for i := range once {
		for j := i + 1; j < len(once); j++ {
			if once[i].Kind == once[j].Kind && once[j].Index-once[i].Index <= 3 && once[j].Index >= once[i].Index {
				t.Errorf("survivors %d and %d of kind %s are within proximity", once[i].Index, once[j].Index, once[i].Kind)
			}
		}
	}
	for i := 1; i < len(once); i++ {
		if once[i].Index < once[i-1].Index {
			t.Fatalf("survivors not sorted by index")
		}
	}
}
