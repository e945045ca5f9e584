package collector

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"TrendCloud/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	End       time.Time // last bar date; zero means today
	DailyData []model.Bar
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, _ string, days int) ([]model.Bar, error) {
	if m.DailyData != nil {
		return m.DailyData, nil
	}
	end := m.End
	if end.IsZero() {
		end = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return generateMockBars(m.Price, days, end), nil
}

// generateMockBars produces a gently rising series with a 40-bar swing so the
// pipeline finds pivots in it.
func generateMockBars(basePrice float64, count int, end time.Time) []model.Bar {
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001) * (1 + 0.05*math.Sin(2*math.Pi*float64(i)/40))
		bars[i] = model.Bar{
			Time:   end.AddDate(0, 0, -(count - 1 - i)),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

// Collector fetches bars and cleans them for the pipeline.
type Collector struct {
	Fetcher   Fetcher
	Timeframe string
	Days      int
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, timeframe string, days int) *Collector {
	return &Collector{Fetcher: fetcher, Timeframe: timeframe, Days: days}
}

// Collect fetches daily bars for symbol and returns them cleaned.
func (c *Collector) Collect(ctx context.Context, symbol string) (*model.PriceSeries, error) {
	raw, err := c.Fetcher.FetchDailyBars(ctx, symbol, c.Days)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars from %s: %w", c.Fetcher.Name(), err)
	}
	bars := Clean(raw)
	if dropped := len(raw) - len(bars); dropped > 0 {
		log.Printf("[WARN] %s: dropped %d of %d bars while cleaning", symbol, dropped, len(raw))
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no usable bars for %s", model.ErrInsufficientData, symbol)
	}
	return &model.PriceSeries{
		Symbol:    symbol,
		Timeframe: c.Timeframe,
		Bars:      bars,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Clean drops bars with non-positive or non-finite prices, keeps the last bar
// of each calendar day and sorts the result ascending. Bar times are
// truncated to midnight UTC so day-based windows include the session bar.
// The input is not modified.
func Clean(bars []model.Bar) []model.Bar {
	byDay := make(map[int64]int, len(bars))
	out := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if !positive(b.Open) || !positive(b.High) || !positive(b.Low) || !positive(b.Close) {
			continue
		}
		b.Time = b.Time.UTC().Truncate(24 * time.Hour)
		day := b.Time.Unix()
		if i, ok := byDay[day]; ok {
			out[i] = b
			continue
		}
		byDay[day] = len(out)
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
