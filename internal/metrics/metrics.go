package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TrendCloud/internal/pipeline"
)

// Metrics holds the Prometheus metrics of the pipeline and the daemon.
type Metrics struct {
	StepsTotal   *prometheus.CounterVec   // labels: symbol, outcome
	StepDuration *prometheus.HistogramVec // labels: symbol
	Zones        *prometheus.GaugeVec     // labels: symbol

	SnapshotsRecorded *prometheus.CounterVec // labels: symbol
	FetchErrors       *prometheus.CounterVec // labels: symbol
	NotifyErrors      prometheus.Counter
	LastSnapshot      *prometheus.GaugeVec // labels: symbol
	DominantPrice     *prometheus.GaugeVec // labels: symbol
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendcloud_steps_total",
			Help: "Rolling steps by outcome (computed, skipped, failed)",
		}, []string{"symbol", "outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trendcloud_step_duration_seconds",
			Help:    "Time to compute one trend cloud window",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"symbol"}),
		Zones: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trendcloud_zones",
			Help: "Convergence zones in the most recently computed window",
		}, []string{"symbol"}),
		SnapshotsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendcloud_snapshots_recorded_total",
			Help: "Snapshots written to the recorder",
		}, []string{"symbol"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendcloud_fetch_errors_total",
			Help: "Failed bar fetches",
		}, []string{"symbol"}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendcloud_notify_errors_total",
			Help: "Telegram messages that could not be delivered",
		}),
		LastSnapshot: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trendcloud_last_snapshot_timestamp_seconds",
			Help: "Calculation date of the latest daily snapshot",
		}, []string{"symbol"}),
		DominantPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trendcloud_dominant_price",
			Help: "Price level of the heaviest cloud point in the latest daily snapshot",
		}, []string{"symbol"}),
	}

	reg.MustRegister(
		m.StepsTotal,
		m.StepDuration,
		m.Zones,
		m.SnapshotsRecorded,
		m.FetchErrors,
		m.NotifyErrors,
		m.LastSnapshot,
		m.DominantPrice,
	)
	return m
}

// ObserveStep records one rolling step.
func (m *Metrics) ObserveStep(symbol, outcome string, elapsed time.Duration, zones int) {
	m.StepsTotal.WithLabelValues(symbol, outcome).Inc()
	m.StepDuration.WithLabelValues(symbol).Observe(elapsed.Seconds())
	if outcome == pipeline.OutcomeComputed {
		m.Zones.WithLabelValues(symbol).Set(float64(zones))
	}
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics server backed by gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the server's routes.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[INFO] metrics server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[ERROR] metrics server: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("[WARN] metrics server shutdown: %v", err)
	}
}
