package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"TrendCloud/internal/collector"
	"TrendCloud/internal/config"
	"TrendCloud/internal/export"
	"TrendCloud/internal/metrics"
	"TrendCloud/internal/notifier"
	"TrendCloud/internal/pipeline"
	"TrendCloud/internal/recorder"
	"TrendCloud/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	mode := flag.String("mode", "daemon", "daemon, snapshot or rolling")
	symbol := flag.String("symbol", "", "symbol for snapshot/rolling mode (default: first configured symbol)")
	startFlag := flag.String("start", "", "rolling start date YYYY-MM-DD (default: first bar + lookback)")
	endFlag := flag.String("end", "", "rolling end date YYYY-MM-DD (default: last bar)")
	out := flag.String("out", "", "rolling result JSON path (default: export dir)")
	flag.Parse()

	log.Printf("[INFO] TrendCloud starting in %s mode...", *mode)

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	fetcher := newFetcher(cfg)
	log.Printf("[INFO] data source: %s", fetcher.Name())
	col := collector.NewCollector(fetcher, cfg.Pipeline.Timeframe, cfg.DataSource.FetchDays)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	settings := buildSettings(cfg)
	settings.Observer = m
	pl := pipeline.New(settings)

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.NewScheduler(ctx, pl, col, rec, cfg.Symbols)
	sched.Metrics = m
	sched.StepDays = cfg.Pipeline.StepDays
	sched.ExportDir = cfg.Export.Dir

	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sched.Notifier = tn
	}

	sym := *symbol
	if sym == "" {
		sym = cfg.Symbols[0]
	}

	switch *mode {
	case "snapshot":
		snap, err := sched.RunSnapshot(sym)
		if err != nil {
			log.Fatalf("[FATAL] snapshot %s: %v", sym, err)
		}
		fmt.Println(notifier.RenderSnapshot(snap))
	case "rolling":
		start, end, err := parseRange(*startFlag, *endFlag)
		if err != nil {
			log.Fatalf("[FATAL] %v", err)
		}
		if *out != "" {
			sched.ExportDir = ""
		}
		res, err := sched.RunRolling(sym, start, end)
		if err != nil {
			log.Fatalf("[FATAL] rolling %s: %v", sym, err)
		}
		if *out != "" {
			if err := export.SaveResult(*out, res); err != nil {
				log.Fatalf("[FATAL] save result: %v", err)
			}
			log.Printf("[INFO] rolling result saved to %s", *out)
		}
		fmt.Println(notifier.RenderRun(res))
	case "daemon":
		runDaemon(ctx, cfg, sched, tn, reg)
	default:
		log.Fatalf("[FATAL] unknown mode %q", *mode)
	}
}

func runDaemon(ctx context.Context, cfg *config.Config, sched *scheduler.Scheduler, tn *notifier.TelegramNotifier, reg *prometheus.Registry) {
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, reg)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	if err := sched.RegisterAll(cfg.Schedule.DailyCron, cfg.Schedule.BackfillCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	} else {
		log.Println("[INFO] Telegram not configured, notifications disabled")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing daily task now")
		go sched.RunDailyNow()
	}

	log.Printf("[INFO] TrendCloud is running for %s. Press Ctrl+C to stop.", strings.Join(cfg.Symbols, ", "))
	<-ctx.Done()
	log.Println("[INFO] shutdown signal received, stopping...")
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	switch cfg.DataSource.Provider {
	case config.ProviderCSV:
		return collector.NewCSVFetcher(cfg.DataSource.CSVDir)
	case config.ProviderMock:
		return &collector.MockFetcher{Price: 100}
	default:
		return collector.NewYahooFetcher(cfg.Proxy)
	}
}

// buildSettings maps the pipeline section of the config onto stage options.
func buildSettings(cfg *config.Config) pipeline.Settings {
	p := cfg.Pipeline
	s := pipeline.DefaultSettings()
	s.LookbackDays = p.LookbackDays
	s.MinWindowBars = p.MinWindowBars
	s.MinPivotWeight = p.MinPivotWeight
	s.Workers = p.Workers
	s.Trendline.Tolerance = p.Tolerance
	s.Cloud.HorizonDays = p.HorizonDays
	s.Cloud.TotalWeight = p.TotalWeight
	s.Cloud.ConvergenceThreshold = p.ConvergenceThreshold
	s.Cloud.Temperature = p.Temperature
	s.Cloud.MinTrendlines = p.MinZoneTrendlines
	s.Cloud.MaxTrendlines = p.MaxTrendlines
	s.Cloud.Bins = p.Bins
	if p.HalfLifeDays != nil {
		s.HalfLifeDays = *p.HalfLifeDays
	}
	if p.MinRSquared != nil {
		s.Cloud.MinRSquared = *p.MinRSquared
	}
	if p.MaxProjectionDeviation != nil {
		s.Cloud.MaxProjectionDeviation = *p.MaxProjectionDeviation
	}
	return s
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if start != "" {
		if from, err = time.Parse("2006-01-02", start); err != nil {
			return from, to, fmt.Errorf("parse -start: %w", err)
		}
	}
	if end != "" {
		if to, err = time.Parse("2006-01-02", end); err != nil {
			return from, to, fmt.Errorf("parse -end: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("-end %s is before -start %s", end, start)
	}
	return from, to, nil
}
