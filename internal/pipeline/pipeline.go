package pipeline

import (
	"fmt"
	"time"

	"TrendCloud/internal/calculator"
	"TrendCloud/internal/cloud"
	"TrendCloud/internal/model"
	"TrendCloud/internal/pivot"
	"TrendCloud/internal/trendline"
)

// Settings configures every stage of the pipeline.
type Settings struct {
	LookbackDays   int
	MinWindowBars  int
	HalfLifeDays   float64 // <= 0 disables time decay
	MinPivotWeight float64
	Workers        int

	Pivot     pivot.Options
	Trendline trendline.Options
	Cloud     cloud.Options

	// Observer receives rolling step outcomes; may be nil.
	Observer Observer
}

// DefaultSettings returns the standard configuration: one-year lookback,
// 50-bar minimum window and an 80-day decay half-life.
func DefaultSettings() Settings {
	return Settings{
		LookbackDays:   365,
		MinWindowBars:  50,
		HalfLifeDays:   80,
		MinPivotWeight: 0.1,
		Pivot:          pivot.DefaultOptions(),
		Trendline:      trendline.DefaultOptions(),
		Cloud:          cloud.DefaultOptions(),
	}
}

// Pipeline runs validation, pivot detection, trendline fitting and cloud
// construction over bar windows. It holds no mutable state and is safe for
// concurrent use.
type Pipeline struct {
	settings Settings
	detector *pivot.Detector
	fitter   *trendline.Fitter
	engine   *cloud.Engine
}

// New creates a pipeline. Unset numeric settings take their defaults.
func New(settings Settings) *Pipeline {
	def := DefaultSettings()
	if settings.LookbackDays <= 0 {
		settings.LookbackDays = def.LookbackDays
	}
	if settings.MinWindowBars < calculator.MinSeriesLength {
		settings.MinWindowBars = def.MinWindowBars
	}
	if settings.MinPivotWeight <= 0 {
		settings.MinPivotWeight = def.MinPivotWeight
	}
	return &Pipeline{
		settings: settings,
		detector: pivot.NewDetector(settings.Pivot),
		fitter:   trendline.NewFitter(settings.Trendline),
		engine:   cloud.NewEngine(settings.Cloud),
	}
}

// Settings returns the effective configuration.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Analyze computes the trend cloud for a single window. The window must pass
// validation and hold at least MinWindowBars bars; the last close is taken as
// the current price.
func (p *Pipeline) Analyze(symbol, timeframe string, window []model.Bar, calculationDate time.Time) (*model.Snapshot, error) {
	if err := calculator.ValidateBars(window); err != nil {
		return nil, err
	}
	return p.analyze(symbol, timeframe, window, calculationDate)
}

// Snapshot slices [calculationDate - lookback, calculationDate] out of series and analyzes it.
func (p *Pipeline) Snapshot(symbol, timeframe string, series *Series, calculationDate time.Time) (*model.Snapshot, error) {
	return p.Analyze(symbol, timeframe, p.window(series, calculationDate), calculationDate)
}

func (p *Pipeline) window(series *Series, calculationDate time.Time) []model.Bar {
	return series.Window(calculationDate.AddDate(0, 0, -p.settings.LookbackDays), calculationDate)
}

// parameters echoes the effective configuration for run metadata.
func (p *Pipeline) parameters() model.RunParameters {
	co := p.engine.Options()
	return model.RunParameters{
		HorizonDays:          co.HorizonDays,
		Tolerance:            p.fitter.Options().Tolerance,
		ConvergenceThreshold: co.ConvergenceThreshold,
		Temperature:          co.Temperature,
		TotalWeight:          co.TotalWeight,
		MinZoneTrendlines:    co.MinTrendlines,
		MaxTrendlines:        co.MaxTrendlines,
		HalfLifeDays:         p.settings.HalfLifeDays,
		MinPivotWeight:       p.settings.MinPivotWeight,
		Bins:                 co.Bins,
	}
}

// analyze assumes every bar in window is individually valid.
func (p *Pipeline) analyze(symbol, timeframe string, window []model.Bar, calculationDate time.Time) (*model.Snapshot, error) {
	if len(window) < p.settings.MinWindowBars {
		return nil, fmt.Errorf("%w: window ending %s has %d bars, need %d", model.ErrInsufficientData,
			calculationDate.Format("2006-01-02"), len(window), p.settings.MinWindowBars)
	}

	pivots, err := p.detector.Detect(window, timeframe)
	if err != nil {
		return nil, fmt.Errorf("detect pivots: %w", err)
	}
	last := window[len(window)-1]
	weights := calculator.TimeWeights(pivots, last.Time, p.settings.HalfLifeDays, p.settings.MinPivotWeight)
	lines := p.fitter.Fit(pivots, weights)
	res := p.engine.Build(lines, calculationDate, last.Close)

	snap := &model.Snapshot{
		Symbol:          symbol,
		Timeframe:       timeframe,
		CalculationDate: calculationDate,
		TargetDate:      res.TargetDate,
		LookbackDays:    p.settings.LookbackDays,
		CurrentPrice:    last.Close,
		PivotCount:      len(pivots),
		TrendlineCount:  len(lines),
		TotalWeight:     res.TotalWeight,
		Zones:           res.Zones,
		Points:          res.Points,
	}
	snap.Summary = Summarize(snap)
	return snap, nil
}

// Summarize aggregates the zones and points of a snapshot.
func Summarize(snap *model.Snapshot) model.SnapshotSummary {
	sum := model.SnapshotSummary{ZoneCount: len(snap.Zones)}
	if len(snap.Zones) == 0 {
		return sum
	}
	var strength float64
	var lines int
	for _, z := range snap.Zones {
		if z.Kind == model.Resistance {
			sum.ResistanceZones++
		} else {
			sum.SupportZones++
		}
		strength += z.TotalStrength
		lines += len(z.ConvergingTrendlines)
	}
	sum.AvgStrength = strength / float64(len(snap.Zones))
	sum.AvgTrendlinesPerZone = float64(lines) / float64(len(snap.Zones))
	for i, pt := range snap.Points {
		if i == 0 || pt.Weight > sum.DominantWeight {
			sum.DominantPrice = pt.PriceLevel
			sum.DominantWeight = pt.Weight
		}
	}
	return sum
}
