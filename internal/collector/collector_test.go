package collector

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TrendCloud/internal/model"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(day int, hour int, close float64) model.Bar {
	return model.Bar{
		Time:  day0.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour),
		Open:  close,
		High:  close,
		Low:   close,
		Close: close,
	}
}

func TestClean(t *testing.T) {
	in := []model.Bar{
		bar(2, 0, 12),
		bar(0, 0, 10),
		bar(1, 0, 0),          // non-positive
		bar(1, 9, math.NaN()), // not finite
		bar(0, 16, 11),        // same day as index 1, later in input
		bar(3, 0, math.Inf(1)),
	}
	got := Clean(in)
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2: %+v", len(got), got)
	}
	if got[0].Close != 11 || got[1].Close != 12 {
		t.Errorf("closes = %.0f, %.0f; want 11, 12", got[0].Close, got[1].Close)
	}
	for i, day := range []int{0, 2} {
		if want := day0.AddDate(0, 0, day); !got[i].Time.Equal(want) {
			t.Errorf("bar %d time %v, want midnight %v", i, got[i].Time, want)
		}
	}
	if in[0].Close != 12 || !in[4].Time.Equal(day0.Add(16*time.Hour)) {
		t.Error("input modified")
	}
}

func TestClean_SessionBarsFallInsideDayWindow(t *testing.T) {
	// yahoo stamps daily bars at the session open
	session := 13*time.Hour + 30*time.Minute
	var in []model.Bar
	for d := range 10 {
		b := bar(d, 0, 100+float64(d))
		b.Time = b.Time.Add(session)
		in = append(in, b)
	}
	got := Clean(in)
	stepDay := day0.AddDate(0, 0, 9)
	var inWindow int
	for _, b := range got {
		if !b.Time.Before(day0) && !b.Time.After(stepDay) {
			inWindow++
		}
	}
	if inWindow != 10 {
		t.Errorf("%d of 10 bars within [%s, %s]", inWindow, day0.Format("2006-01-02"), stepDay.Format("2006-01-02"))
	}
	if got[9].Close != 109 {
		t.Errorf("step-day close = %.0f, want 109", got[9].Close)
	}
}

func TestReadCSV(t *testing.T) {
	data := "Date,Open,High,Low,Close,Volume\n" +
		"2024-03-01,10,11,9,10.5,1000\n" +
		"1709337600, 10.5, 12, 10, 11.5, 1200\n" +
		"2024-03-03T00:00:00Z,11.5,12,11,11.8,900\n"
	bars, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars", len(bars))
	}
	for i, b := range bars {
		if want := day0.AddDate(0, 0, i); !b.Time.Equal(want) {
			t.Errorf("bar %d time %v, want %v", i, b.Time, want)
		}
	}
	if bars[1].High != 12 || bars[1].Volume != 1200 {
		t.Errorf("bar 1 = %+v", bars[1])
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"missing column", "timestamp,open,high,low,close\n2024-03-01,1,1,1,1\n"},
		{"bad number", "timestamp,open,high,low,close,volume\n2024-03-01,1,x,1,1,1\n"},
		{"bad time", "timestamp,open,high,low,close,volume\nyesterday,1,1,1,1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCSVFetcher(t *testing.T) {
	dir := t.TempDir()
	data := "timestamp,open,high,low,close,volume\n" +
		"2024-03-01,1,1,1,1,1\n2024-03-02,2,2,2,2,1\n2024-03-03,3,3,3,3,1\n"
	if err := os.WriteFile(filepath.Join(dir, "ABC.csv"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	f := NewCSVFetcher(dir)
	bars, err := f.FetchDailyBars(context.Background(), "ABC", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 2 || bars[0].Close != 2 {
		t.Errorf("expected the last two bars, got %+v", bars)
	}
	if _, err := f.FetchDailyBars(context.Background(), "MISSING", 2); err == nil {
		t.Error("expected error for missing file")
	}
}

const chartJSON = `{"chart":{"result":[{"timestamp":[1709337600,1709251200,1709424000],
"indicators":{"quote":[{"open":[2,1,null],"high":[2.5,1.5,null],"low":[1.5,0.5,null],
"close":[2.2,1.1,null],"volume":[20,10,null]}]}}],"error":null}}`

func TestYahooFetcher(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path + "?" + r.URL.RawQuery
		w.Write([]byte(chartJSON))
	}))
	defer srv.Close()

	f := NewYahooFetcher("")
	f.BaseURL = srv.URL
	bars, err := f.FetchDailyBars(context.Background(), "SPX500", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(path, "%5EGSPC") && !strings.Contains(path, "^GSPC") {
		t.Errorf("symbol not mapped: %s", path)
	}
	if !strings.Contains(path, "range=6mo") {
		t.Errorf("unexpected range: %s", path)
	}
	if len(bars) != 2 {
		t.Fatalf("null row should be skipped, got %d bars", len(bars))
	}
	if bars[0].Close != 1.1 || bars[1].Close != 2.2 {
		t.Errorf("bars not sorted ascending: %+v", bars)
	}
}

func TestYahooFetcher_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"status", http.StatusTooManyRequests, "slow down"},
		{"api error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`},
		{"empty", http.StatusOK, `{"chart":{"result":[],"error":null}}`},
		{"garbage", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			f := NewYahooFetcher("")
			f.BaseURL = srv.URL
			if _, err := f.FetchDailyBars(context.Background(), "X", 10); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCollect(t *testing.T) {
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	c := NewCollector(&MockFetcher{Price: 100, End: end}, "1d", 120)
	series, err := c.Collect(context.Background(), "MOCK")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Symbol != "MOCK" || series.Timeframe != "1d" || len(series.Bars) != 120 {
		t.Errorf("unexpected series: %s %s %d", series.Symbol, series.Timeframe, len(series.Bars))
	}
	if !series.Bars[len(series.Bars)-1].Time.Equal(end) {
		t.Errorf("last bar at %v, want %v", series.Bars[len(series.Bars)-1].Time, end)
	}
	if series.LastClose() <= 0 {
		t.Error("expected a positive last close")
	}
}

type failingFetcher struct{}

func (failingFetcher) Name() string { return "failing" }
func (failingFetcher) FetchDailyBars(context.Context, string, int) ([]model.Bar, error) {
	return nil, errors.New("boom")
}

func TestCollect_Errors(t *testing.T) {
	if _, err := NewCollector(failingFetcher{}, "1d", 10).Collect(context.Background(), "X"); err == nil {
		t.Error("expected fetch error")
	}
	empty := &MockFetcher{DailyData: []model.Bar{bar(0, 0, -1)}}
	_, err := NewCollector(empty, "1d", 10).Collect(context.Background(), "X")
	if !errors.Is(err, model.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}
