package pipeline

import (
	"sort"
	"time"

	"TrendCloud/internal/model"
)

// Series is a time-indexed, read-only view over ascending bars.
type Series struct {
	bars  []model.Bar
	times []time.Time
}

// NewSeries indexes bars by timestamp. bars must already be sorted ascending.
func NewSeries(bars []model.Bar) *Series {
	times := make([]time.Time, len(bars))
	for i, b := range bars {
		times[i] = b.Time
	}
	return &Series{bars: bars, times: times}
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.bars)
}

// Bars returns the underlying bars. Callers must not modify them.
func (s *Series) Bars() []model.Bar {
	return s.bars
}

// Window returns the bars with from <= Time <= to using binary search.
// The result shares storage with the series.
func (s *Series) Window(from, to time.Time) []model.Bar {
	lo := sort.Search(len(s.times), func(i int) bool { return !s.times[i].Before(from) })
	hi := sort.Search(len(s.times), func(i int) bool { return s.times[i].After(to) })
	if lo >= hi {
		return nil
	}
	return s.bars[lo:hi:hi]
}

// StepDates lists start, start+step, ... up to and including end.
func StepDates(start, end time.Time, stepDays int) []time.Time {
	if stepDays <= 0 || end.Before(start) {
		return nil
	}
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, stepDays) {
		dates = append(dates, d)
	}
	return dates
}

// DefaultRange returns the widest rolling range whose first step already has a
// full lookback: first bar + lookback days through the last bar.
func DefaultRange(bars []model.Bar, lookbackDays int) (start, end time.Time) {
	if len(bars) == 0 {
		return time.Time{}, time.Time{}
	}
	start = bars[0].Time.AddDate(0, 0, lookbackDays)
	end = bars[len(bars)-1].Time
	if start.After(end) {
		start = end
	}
	return start, end
}
