package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Data source providers.
const (
	ProviderCSV   = "csv"
	ProviderYahoo = "yahoo"
	ProviderMock  = "mock"
)

// Pipeline holds the analysis parameters. Zero values fall back to defaults,
// except for the pointer fields where an explicit 0 is kept: min_r_squared 0
// disables the R² floor, half_life_days <= 0 disables time decay and
// max_projection_deviation 0 disables the projection band.
type Pipeline struct {
	Timeframe              string   `yaml:"timeframe" toml:"timeframe"`
	LookbackDays           int      `yaml:"lookback_days" toml:"lookback_days"`
	HorizonDays            int      `yaml:"horizon_days" toml:"horizon_days"`
	MinWindowBars          int      `yaml:"min_window_bars" toml:"min_window_bars"`
	ConvergenceThreshold   float64  `yaml:"convergence_threshold" toml:"convergence_threshold"`
	Temperature            float64  `yaml:"temperature" toml:"temperature"`
	TotalWeight            float64  `yaml:"total_weight" toml:"total_weight"`
	Tolerance              float64  `yaml:"tolerance" toml:"tolerance"`
	MinZoneTrendlines      int      `yaml:"min_zone_trendlines" toml:"min_zone_trendlines"`
	MaxTrendlines          int      `yaml:"max_trendlines" toml:"max_trendlines"`
	MinRSquared            *float64 `yaml:"min_r_squared" toml:"min_r_squared"`
	HalfLifeDays           *float64 `yaml:"half_life_days" toml:"half_life_days"`
	MaxProjectionDeviation *float64 `yaml:"max_projection_deviation" toml:"max_projection_deviation"`
	MinPivotWeight         float64  `yaml:"min_pivot_weight" toml:"min_pivot_weight"`
	Bins                   int      `yaml:"bins" toml:"bins"`
	StepDays               int      `yaml:"step_days" toml:"step_days"`
	Workers                int      `yaml:"workers" toml:"workers"`
}

// Config holds all application configuration.
type Config struct {
	Symbols    []string `yaml:"symbols" toml:"symbols"`
	DataSource struct {
		Provider  string `yaml:"provider" toml:"provider"`
		CSVDir    string `yaml:"csv_dir" toml:"csv_dir"`
		FetchDays int    `yaml:"fetch_days" toml:"fetch_days"`
	} `yaml:"data_source" toml:"data_source"`
	Telegram struct {
		BotToken string `yaml:"bot_token" toml:"bot_token"`
		ChatID   string `yaml:"chat_id" toml:"chat_id"`
	} `yaml:"telegram" toml:"telegram"`
	Schedule struct {
		DailyCron    string `yaml:"daily_cron" toml:"daily_cron"`
		BackfillCron string `yaml:"backfill_cron" toml:"backfill_cron"`
	} `yaml:"schedule" toml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
	} `yaml:"database" toml:"database"`
	Metrics struct {
		Addr string `yaml:"addr" toml:"addr"`
	} `yaml:"metrics" toml:"metrics"`
	Export struct {
		Dir string `yaml:"dir" toml:"dir"`
	} `yaml:"export" toml:"export"`
	Pipeline Pipeline `yaml:"pipeline" toml:"pipeline"`
	Proxy    string   `yaml:"proxy" toml:"proxy"`
}

// Load reads config from a YAML or TOML file (chosen by extension), then
// applies environment variable overrides and defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TRENDCLOUD_SYMBOLS"); v != "" {
		cfg.Symbols = splitList(v)
	}
	if v := os.Getenv("CSV_DIR"); v != "" {
		cfg.DataSource.CSVDir = v
		if cfg.DataSource.Provider == "" {
			cfg.DataSource.Provider = ProviderCSV
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("LOOKBACK_DAYS"); v != "" {
		var days int
		if _, err := fmt.Sscanf(v, "%d", &days); err == nil {
			cfg.Pipeline.LookbackDays = days
		}
	}
	if v := os.Getenv("HORIZON_DAYS"); v != "" {
		var days int
		if _, err := fmt.Sscanf(v, "%d", &days); err == nil {
			cfg.Pipeline.HorizonDays = days
		}
	}
}

func applyDefaults(cfg *Config) {
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"SPX500"}
	}
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = ProviderYahoo
	}
	if cfg.DataSource.FetchDays == 0 {
		cfg.DataSource.FetchDays = 730
	}
	if cfg.Schedule.DailyCron == "" {
		cfg.Schedule.DailyCron = "0 30 22 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/trendcloud.db"
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "data/results"
	}

	p := &cfg.Pipeline
	if p.Timeframe == "" {
		p.Timeframe = "1d"
	}
	if p.LookbackDays == 0 {
		p.LookbackDays = 365
	}
	if p.HorizonDays == 0 {
		p.HorizonDays = 5
	}
	if p.MinWindowBars == 0 {
		p.MinWindowBars = 50
	}
	if p.ConvergenceThreshold == 0 {
		p.ConvergenceThreshold = 0.05
	}
	if p.Temperature == 0 {
		p.Temperature = 2.0
	}
	if p.TotalWeight == 0 {
		p.TotalWeight = 100
	}
	if p.Tolerance == 0 {
		p.Tolerance = 0.02
	}
	if p.MinZoneTrendlines == 0 {
		p.MinZoneTrendlines = 2
	}
	if p.MaxTrendlines == 0 {
		p.MaxTrendlines = 20
	}
	if p.MinRSquared == nil {
		p.MinRSquared = float64Ptr(0.3)
	}
	if p.HalfLifeDays == nil {
		p.HalfLifeDays = float64Ptr(80)
	}
	if p.MaxProjectionDeviation == nil {
		p.MaxProjectionDeviation = float64Ptr(0.30)
	}
	if p.MinPivotWeight == 0 {
		p.MinPivotWeight = 0.1
	}
	if p.Bins == 0 {
		p.Bins = 10
	}
	if p.StepDays == 0 {
		p.StepDays = 7
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that all required fields are set and parameters are in range.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must not be empty")
	}
	switch c.DataSource.Provider {
	case ProviderCSV:
		if c.DataSource.CSVDir == "" {
			return fmt.Errorf("data_source.csv_dir is required for the csv provider")
		}
	case ProviderYahoo, ProviderMock:
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}

	p := c.Pipeline
	if p.LookbackDays <= 0 || p.HorizonDays <= 0 || p.StepDays <= 0 {
		return fmt.Errorf("pipeline day counts must be positive")
	}
	if p.MinWindowBars < 5 {
		return fmt.Errorf("pipeline.min_window_bars must be at least 5, got %d", p.MinWindowBars)
	}
	if p.ConvergenceThreshold <= 0 || p.ConvergenceThreshold >= 1 {
		return fmt.Errorf("pipeline.convergence_threshold must be in (0, 1), got %g", p.ConvergenceThreshold)
	}
	if p.Temperature <= 0 || p.TotalWeight <= 0 || p.Tolerance <= 0 {
		return fmt.Errorf("pipeline temperature, total_weight and tolerance must be positive")
	}
	if p.MinZoneTrendlines < 2 {
		return fmt.Errorf("pipeline.min_zone_trendlines must be at least 2, got %d", p.MinZoneTrendlines)
	}
	if p.MaxTrendlines < p.MinZoneTrendlines {
		return fmt.Errorf("pipeline.max_trendlines (%d) is below min_zone_trendlines (%d)", p.MaxTrendlines, p.MinZoneTrendlines)
	}
	if p.MinRSquared != nil && (*p.MinRSquared < 0 || *p.MinRSquared > 1) {
		return fmt.Errorf("pipeline.min_r_squared must be in [0, 1], got %g", *p.MinRSquared)
	}
	if p.MaxProjectionDeviation != nil && *p.MaxProjectionDeviation < 0 {
		return fmt.Errorf("pipeline.max_projection_deviation must not be negative, got %g", *p.MaxProjectionDeviation)
	}
	if p.MinPivotWeight < 0 || p.MinPivotWeight > 1 {
		return fmt.Errorf("pipeline.min_pivot_weight must be in [0, 1], got %g", p.MinPivotWeight)
	}
	if p.Bins < 5 || p.Bins > 15 {
		return fmt.Errorf("pipeline.bins must be in [5, 15], got %d", p.Bins)
	}
	if p.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative")
	}
	return nil
}
