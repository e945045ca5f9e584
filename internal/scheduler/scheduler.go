package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"TrendCloud/internal/collector"
	"TrendCloud/internal/export"
	"TrendCloud/internal/metrics"
	"TrendCloud/internal/model"
	"TrendCloud/internal/notifier"
	"TrendCloud/internal/pipeline"
	"TrendCloud/internal/recorder"
)

// Sender delivers a formatted message. *notifier.TelegramNotifier implements it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Pipeline  *pipeline.Pipeline
	Collector *collector.Collector
	Recorder  recorder.Recorder
	Notifier  Sender           // optional
	Metrics   *metrics.Metrics // optional
	Symbols   []string
	StepDays  int
	ExportDir string // empty disables JSON export
	Ctx       context.Context

	mu      sync.Mutex
	running map[string]bool
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, pl *pipeline.Pipeline, col *collector.Collector, rec recorder.Recorder, symbols []string) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Pipeline:  pl,
		Collector: col,
		Recorder:  rec,
		Symbols:   symbols,
		StepDays:  7,
		Ctx:       ctx,
		running:   make(map[string]bool),
	}
}

// RegisterAll registers the daily snapshot task and, when backfillCron is set,
// the rolling backfill task.
func (s *Scheduler) RegisterAll(dailyCron, backfillCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	if backfillCron != "" {
		if _, err := s.Cron.AddFunc(backfillCron, s.backfillTask); err != nil {
			return fmt.Errorf("register backfill task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunDailyNow executes the daily task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunDailyNow() {
	s.dailyTask()
}

func (s *Scheduler) dailyTask() {
	log.Println("[INFO] running daily snapshot task")
	for _, symbol := range s.Symbols {
		snap, err := s.RunSnapshot(symbol)
		if err != nil {
			log.Printf("[ERROR] daily snapshot %s: %v", symbol, err)
			s.trySend(fmt.Sprintf("❌ %s snapshot failed: %v", symbol, err))
			continue
		}
		s.trySend(notifier.FormatSnapshot(snap))
	}
}

func (s *Scheduler) backfillTask() {
	log.Println("[INFO] running rolling backfill task")
	for _, symbol := range s.Symbols {
		res, err := s.RunRolling(symbol, time.Time{}, time.Time{})
		if err != nil {
			log.Printf("[ERROR] backfill %s: %v", symbol, err)
			continue
		}
		s.trySend(notifier.FormatRunSummary(res))
	}
}

// acquire marks symbol busy so overlapping cron and command runs do not
// compute the same symbol twice.
func (s *Scheduler) acquire(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[symbol] {
		return false
	}
	s.running[symbol] = true
	return true
}

func (s *Scheduler) release(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, symbol)
}

func (s *Scheduler) collect(symbol string) (*model.PriceSeries, error) {
	series, err := s.Collector.Collect(s.Ctx, symbol)
	if err != nil && s.Metrics != nil {
		s.Metrics.FetchErrors.WithLabelValues(symbol).Inc()
	}
	return series, err
}

// RunSnapshot fetches bars for symbol, computes the cloud as of the last bar
// and records it.
func (s *Scheduler) RunSnapshot(symbol string) (*model.Snapshot, error) {
	if !s.acquire(symbol) {
		return nil, fmt.Errorf("%s is already being processed", symbol)
	}
	defer s.release(symbol)

	ps, err := s.collect(symbol)
	if err != nil {
		return nil, err
	}
	date := ps.Bars[len(ps.Bars)-1].Time
	snap, err := s.Pipeline.Snapshot(symbol, ps.Timeframe, pipeline.NewSeries(ps.Bars), date)
	if err != nil {
		return nil, fmt.Errorf("compute snapshot: %w", err)
	}
	log.Printf("[INFO] %s %s: %d pivots, %d trendlines, %d zones", symbol, date.Format("2006-01-02"),
		snap.PivotCount, snap.TrendlineCount, len(snap.Zones))

	if err := s.Recorder.RecordSnapshot(snap); err != nil {
		log.Printf("[ERROR] record snapshot: %v", err)
	} else if s.Metrics != nil {
		s.Metrics.SnapshotsRecorded.WithLabelValues(symbol).Inc()
	}
	if s.Metrics != nil {
		s.Metrics.LastSnapshot.WithLabelValues(symbol).Set(float64(date.Unix()))
		s.Metrics.DominantPrice.WithLabelValues(symbol).Set(snap.Summary.DominantPrice)
	}
	return snap, nil
}

// RunRolling fetches bars for symbol and runs the rolling pipeline over
// [start, end]. Zero dates select the default range. The result is recorded
// and exported.
func (s *Scheduler) RunRolling(symbol string, start, end time.Time) (*model.RollingResult, error) {
	if !s.acquire(symbol) {
		return nil, fmt.Errorf("%s is already being processed", symbol)
	}
	defer s.release(symbol)

	ps, err := s.collect(symbol)
	if err != nil {
		return nil, err
	}
	defStart, defEnd := pipeline.DefaultRange(ps.Bars, s.Pipeline.Settings().LookbackDays)
	if start.IsZero() {
		start = defStart
	}
	if end.IsZero() {
		end = defEnd
	}
	res, err := s.Pipeline.RunRolling(s.Ctx, symbol, ps.Timeframe, ps.Bars, start, end, s.StepDays)
	if err != nil {
		return nil, fmt.Errorf("rolling run: %w", err)
	}
	md := res.Metadata
	log.Printf("[INFO] %s rolling %s..%s: %d computed, %d skipped", symbol,
		md.Start.Format("2006-01-02"), md.End.Format("2006-01-02"), md.Computed, md.Skipped)

	if err := s.Recorder.RecordRun(res); err != nil {
		log.Printf("[ERROR] record run: %v", err)
	}
	if s.ExportDir != "" {
		path := export.ResultPath(s.ExportDir, md)
		if err := export.SaveResult(path, res); err != nil {
			log.Printf("[ERROR] export run: %v", err)
		} else {
			log.Printf("[INFO] rolling result saved to %s", path)
		}
	}
	return res, nil
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return s.help()
	}
	arg := ""
	if len(fields) > 1 {
		arg = strings.ToUpper(fields[1])
	}
	switch fields[0] {
	case "/symbols":
		return "Tracked symbols: " + strings.Join(s.Symbols, ", ")
	case "/cloud":
		if arg == "" {
			return "usage: /cloud SYMBOL"
		}
		snap, err := s.Recorder.LatestSnapshot(arg, s.Collector.Timeframe)
		if err != nil {
			log.Printf("[ERROR] load snapshot %s: %v", arg, err)
		}
		if snap == nil {
			return fmt.Sprintf("No snapshot stored for %s, try /run %s", arg, arg)
		}
		return notifier.FormatSnapshot(snap)
	case "/run":
		if arg == "" {
			return "usage: /run SYMBOL"
		}
		snap, err := s.RunSnapshot(arg)
		if err != nil {
			return fmt.Sprintf("❌ %s snapshot failed: %v", arg, err)
		}
		return notifier.FormatSnapshot(snap)
	default:
		return s.help()
	}
}

func (s *Scheduler) help() string {
	return "Available commands:\n• /cloud SYMBOL - latest stored trend cloud\n• /run SYMBOL - compute a trend cloud now\n• /symbols - tracked symbols"
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
		if s.Metrics != nil {
			s.Metrics.NotifyErrors.Inc()
		}
	}
}
