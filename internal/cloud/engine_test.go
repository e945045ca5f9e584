package cloud

import (
	"fmt"
	"math"
	"testing"
	"time"

	"TrendCloud/internal/model"
)

var calcDate = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

// flatLine returns a zero-slope trendline that projects to price at any date.
func flatLine(id string, price float64, points int, r2 float64) model.Trendline {
	return model.Trendline{
		ID:        id,
		Points:    make([]model.Pivot, points),
		Origin:    calcDate,
		Intercept: math.Log(price),
		RSquared:  r2,
	}
}

func sumWeights(points []model.TrendCloudPoint) float64 {
	s := 0.0
	for _, p := range points {
		s += p.Weight
	}
	return s
}

func TestBuild_SingleLineHasNoZones(t *testing.T) {
	res := NewEngine(DefaultOptions()).Build([]model.Trendline{flatLine("a", 101, 4, 0.9)}, calcDate, 100)
	if len(res.Zones) != 0 || len(res.Points) != 0 {
		t.Fatalf("expected no zones, got %d", len(res.Zones))
	}
	if res.TotalWeight != 0 {
		t.Errorf("expected total weight 0, got %.4f", res.TotalWeight)
	}
	if !res.TargetDate.Equal(calcDate.AddDate(0, 0, 5)) {
		t.Errorf("target date = %s", res.TargetDate)
	}
}

func TestBuild_TwoAgreeingLines(t *testing.T) {
	lines := []model.Trendline{flatLine("a", 100, 3, 0.8), flatLine("b", 101, 2, 0.6)}
	res := NewEngine(DefaultOptions()).Build(lines, calcDate, 100)
	if len(res.Zones) != 1 {
		t.Fatalf("expected 1 zone, got %d", len(res.Zones))
	}
	z := res.Zones[0]
	if math.Abs(z.CenterPrice-100.5) > 1e-9 {
		t.Errorf("center = %.6f, want 100.5", z.CenterPrice)
	}
	if math.Abs(z.PriceRange.Low-100) > 1e-9 || math.Abs(z.PriceRange.High-101) > 1e-9 {
		t.Errorf("range = %+v", z.PriceRange)
	}
	if z.TotalStrength != 5 {
		t.Errorf("total strength = %.1f, want 5", z.TotalStrength)
	}
	if math.Abs(z.AvgConfidence-0.7) > 1e-12 {
		t.Errorf("avg confidence = %.4f, want 0.7", z.AvgConfidence)
	}
	if z.Kind != model.Resistance {
		t.Errorf("zone above price should be RESISTANCE, got %s", z.Kind)
	}
	p := res.Points[0]
	if math.Abs(p.Weight-100) > 1e-9 || p.NormalizedWeight != 1 || p.Density != 1 || p.TrendlineCount != 2 {
		t.Errorf("unexpected point %+v", p)
	}
}

func TestBuild_ProjectionsBeyondThresholdNeverShareZone(t *testing.T) {
	prices := []float64{90, 92, 94.5, 96, 99, 101, 103.5, 104, 108, 110, 97.5, 100.2}
	var lines []model.Trendline
	for i, p := range prices {
		lines = append(lines, flatLine(fmt.Sprintf("l%02d", i), p, 2+i%4, 0.9))
	}
	res := NewEngine(DefaultOptions()).Build(lines, calcDate, 100)
	if len(res.Zones) == 0 {
		t.Fatal("expected at least one zone")
	}
	thr := 0.05 * 100
	for i, z := range res.Zones {
		if z.PriceRange.High-z.PriceRange.Low > thr+1e-9 {
			t.Errorf("zone %d spans %.3f > threshold %.3f", i, z.PriceRange.High-z.PriceRange.Low, thr)
		}
		if len(z.ConvergingTrendlines) < 2 {
			t.Errorf("zone %d has %d trendlines", i, len(z.ConvergingTrendlines))
		}
	}

	// two lines 6 apart with a 5 threshold
	res = NewEngine(DefaultOptions()).Build([]model.Trendline{flatLine("a", 100, 3, 0.9), flatLine("b", 106, 3, 0.9)}, calcDate, 100)
	if len(res.Zones) != 0 {
		t.Errorf("expected no shared zone, got %d", len(res.Zones))
	}
}

func TestBuild_WeightConservation(t *testing.T) {
	var lines []model.Trendline
	for i := 0; i < 20; i++ {
		price := 80 + float64(i%10)*4 + float64(i/10)*0.5
		lines = append(lines, flatLine(fmt.Sprintf("l%02d", i), price, 2+i%5, 0.5+float64(i%5)/10))
	}
	res := NewEngine(DefaultOptions()).Build(lines, calcDate, 100)
	if len(res.Zones) < 2 {
		t.Fatalf("expected several zones, got %d", len(res.Zones))
	}
	if got := sumWeights(res.Points); math.Abs(got-100)/100 > 1e-6 {
		t.Errorf("weights sum to %.9f, want 100", got)
	}
	if math.Abs(res.TotalWeight-100) > 1e-6 {
		t.Errorf("total weight = %.9f", res.TotalWeight)
	}
	for i, p := range res.Points {
		if p.Density < 0.2 || p.Density > 1 {
			t.Errorf("point %d density %.3f out of range", i, p.Density)
		}
		if p.Weight < 0 {
			t.Errorf("point %d negative weight", i)
		}
		if p.TrendlineCount < 2 {
			t.Errorf("point %d backed by %d lines", i, p.TrendlineCount)
		}
	}
}

func TestBuild_SoftmaxAcrossBins(t *testing.T) {
	lines := []model.Trendline{
		flatLine("a", 90, 5, 0.9),
		flatLine("b", 90, 5, 0.9),
		flatLine("c", 110, 2, 0.9),
		flatLine("d", 110, 2, 0.9),
	}
	opts := DefaultOptions()
	opts.Temperature = 0.5
	res := NewEngine(opts).Build(lines, calcDate, 100)
	if len(res.Zones) != 2 {
		t.Fatalf("expected 2 zones, got %d", len(res.Zones))
	}
	// logits 1/0.5 and 0.4/0.5
	hi, lo := math.Exp(2.0), math.Exp(0.8)
	want := []float64{100 * hi / (hi + lo), 100 * lo / (hi + lo)}
	for i := range want {
		if math.Abs(res.Zones[i].Weight-want[i]) > 1e-6 {
			t.Errorf("zone %d weight %.6f, want %.6f", i, res.Zones[i].Weight, want[i])
		}
	}
	if res.Zones[0].Kind != model.Support || res.Zones[1].Kind != model.Resistance {
		t.Errorf("kinds = %s, %s", res.Zones[0].Kind, res.Zones[1].Kind)
	}
	wantDensity := math.Exp(-1.2) * 1.5
	if math.Abs(res.Points[1].Density-wantDensity) > 1e-9 {
		t.Errorf("density = %.6f, want %.6f", res.Points[1].Density, wantDensity)
	}
}

func TestBuild_TimeDecayedStrengthDrivesWeights(t *testing.T) {
	decayed := func(id string, price, ws float64) model.Trendline {
		tl := flatLine(id, price, 3, 0.9)
		tl.WeightedStrength = ws
		return tl
	}
	tests := []struct {
		name         string
		near, far    float64
		nearStronger bool
	}{
		{"recent lines near", 2.9, 0.3, true},
		{"recent lines far", 0.3, 2.9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []model.Trendline{
				decayed("a", 90, tt.near), decayed("b", 90, tt.near),
				decayed("c", 110, tt.far), decayed("d", 110, tt.far),
			}
			res := NewEngine(DefaultOptions()).Build(lines, calcDate, 100)
			if len(res.Zones) != 2 {
				t.Fatalf("expected 2 zones, got %d", len(res.Zones))
			}
			if got := res.Zones[0].TotalStrength; math.Abs(got-2*tt.near) > 1e-9 {
				t.Errorf("total strength = %.4f, want %.4f", got, 2*tt.near)
			}
			// logits (s/max)/T with T = 2
			strong, weak := math.Exp(0.5), math.Exp(0.6/5.8/2)
			wantNear := 100 * weak / (strong + weak)
			if tt.nearStronger {
				wantNear = 100 * strong / (strong + weak)
			}
			if math.Abs(res.Zones[0].Weight-wantNear) > 1e-6 {
				t.Errorf("near zone weight %.6f, want %.6f", res.Zones[0].Weight, wantNear)
			}
			if math.Abs(sumWeights(res.Points)-100) > 1e-6 {
				t.Errorf("weights sum to %.6f", sumWeights(res.Points))
			}
		})
	}
}

func TestBuild_ZonesInSameBinSplitEvenly(t *testing.T) {
	lines := []model.Trendline{
		flatLine("a", 15, 2, 0.9), flatLine("b", 15.1, 2, 0.9),
		flatLine("c", 16.5, 2, 0.9), flatLine("d", 16.6, 2, 0.9),
		flatLine("e", 25, 2, 0.9), flatLine("f", 25.1, 2, 0.9),
	}
	opts := DefaultOptions()
	opts.Bins = 5
	res := NewEngine(opts).Build(lines, calcDate, 20)
	if len(res.Zones) != 3 {
		t.Fatalf("expected 3 zones, got %d", len(res.Zones))
	}
	if math.Abs(res.Zones[0].Weight-res.Zones[1].Weight) > 1e-9 {
		t.Errorf("same-bin zones weigh %.6f and %.6f", res.Zones[0].Weight, res.Zones[1].Weight)
	}
	if math.Abs(sumWeights(res.Points)-100) > 1e-6 {
		t.Errorf("weights sum to %.6f", sumWeights(res.Points))
	}
}

func TestBuild_Filters(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		lines []model.Trendline
		price float64
		zones int
	}{
		{
			name:  "low r-squared dropped",
			opts:  DefaultOptions(),
			lines: []model.Trendline{flatLine("a", 100, 3, 0.9), flatLine("b", 100.5, 3, 0.1)},
			price: 100,
		},
		{
			name:  "min trendlines raised to two",
			opts:  Options{MinTrendlines: 1},
			lines: []model.Trendline{flatLine("a", 100, 3, 0.9)},
			price: 100,
		},
		{
			name:  "far projections dropped",
			opts:  DefaultOptions(),
			lines: []model.Trendline{flatLine("a", 140, 3, 0.9), flatLine("b", 141, 3, 0.9)},
			price: 100,
		},
		{
			name:  "deviation filter disabled",
			opts:  Options{MaxProjectionDeviation: 0, ConvergenceThreshold: 0.05},
			lines: []model.Trendline{flatLine("a", 140, 3, 0.9), flatLine("b", 141, 3, 0.9)},
			price: 100,
			zones: 1,
		},
		{
			name:  "single-point line dropped",
			opts:  DefaultOptions(),
			lines: []model.Trendline{flatLine("a", 100, 3, 0.9), flatLine("b", 100.5, 1, 0.9)},
			price: 100,
		},
		{
			name:  "max trendlines keeps strongest",
			opts:  Options{MaxTrendlines: 2},
			lines: []model.Trendline{flatLine("a", 100, 5, 0.9), flatLine("b", 100.5, 2, 0.9), flatLine("c", 100.2, 4, 0.9)},
			price: 100,
			zones: 1,
		},
		{
			name:  "non-positive price",
			opts:  DefaultOptions(),
			lines: []model.Trendline{flatLine("a", 100, 3, 0.9), flatLine("b", 100.5, 3, 0.9)},
			price: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewEngine(tt.opts).Build(tt.lines, calcDate, tt.price)
			if len(res.Zones) != tt.zones {
				t.Fatalf("zones = %d, want %d", len(res.Zones), tt.zones)
			}
			if tt.zones == 0 && res.TotalWeight != 0 {
				t.Errorf("empty result has total weight %.4f", res.TotalWeight)
			}
		})
	}
}

func TestOptions_BinsClamped(t *testing.T) {
	if got := NewEngine(Options{Bins: 40}).Options().Bins; got != 15 {
		t.Errorf("bins = %d, want 15", got)
	}
	if got := NewEngine(Options{Bins: 2}).Options().Bins; got != 5 {
		t.Errorf("bins = %d, want 5", got)
	}
}
