package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"TrendCloud/internal/pipeline"
)

var _ pipeline.Observer = (*Metrics)(nil)

func TestObserveStep(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveStep("SPX", pipeline.OutcomeComputed, 20*time.Millisecond, 3)
	m.ObserveStep("SPX", pipeline.OutcomeComputed, 10*time.Millisecond, 2)
	m.ObserveStep("SPX", pipeline.OutcomeSkipped, time.Millisecond, 0)

	if got := testutil.ToFloat64(m.StepsTotal.WithLabelValues("SPX", "computed")); got != 2 {
		t.Errorf("computed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.StepsTotal.WithLabelValues("SPX", "skipped")); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Zones.WithLabelValues("SPX")); got != 2 {
		t.Errorf("zones = %v, want the last computed value 2", got)
	}
	if n := testutil.CollectAndCount(m.StepDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.FetchErrors.WithLabelValues("AAPL").Inc()

	srv := httptest.NewServer(NewServer(":0", reg).Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `trendcloud_fetch_errors_total{symbol="AAPL"} 1`) {
		t.Errorf("metrics output missing fetch errors:\n%s", body)
	}

	resp, err = srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}
