package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"TrendCloud/internal/calculator"
	"TrendCloud/internal/model"
)

// Step outcomes reported to an Observer.
const (
	OutcomeComputed = "computed"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Observer is notified after every rolling step.
type Observer interface {
	ObserveStep(symbol, outcome string, elapsed time.Duration, zones int)
}

// Rolling walks [start, end] in steps of stepDays and computes one snapshot per
// step over the lookback window ending at that date. Steps whose window is too
// short are skipped. Snapshots are returned in date order.
func (p *Pipeline) Rolling(ctx context.Context, symbol, timeframe string, bars []model.Bar, start, end time.Time, stepDays int) ([]model.Snapshot, error) {
	if err := calculator.ValidateEach(bars); err != nil {
		return nil, err
	}
	if stepDays <= 0 {
		return nil, fmt.Errorf("%w: step must be positive, got %d days", model.ErrInvalidInput, stepDays)
	}

	dates := StepDates(start, end, stepDays)
	if len(dates) == 0 {
		return nil, nil
	}
	series := NewSeries(bars)
	results := make([]*model.Snapshot, len(dates))

	workers := p.settings.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, date := range dates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			began := time.Now()
			snap, err := p.analyze(symbol, timeframe, p.window(series, date), date)
			elapsed := time.Since(began)
			switch {
			case errors.Is(err, model.ErrInsufficientData):
				log.Printf("[WARN] %s %s: skipping %s: %v", symbol, timeframe, date.Format("2006-01-02"), err)
				p.observe(symbol, OutcomeSkipped, elapsed, 0)
				return nil
			case err != nil:
				p.observe(symbol, OutcomeFailed, elapsed, 0)
				return fmt.Errorf("step %s: %w", date.Format("2006-01-02"), err)
			}
			p.observe(symbol, OutcomeComputed, elapsed, len(snap.Zones))
			results[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshots := make([]model.Snapshot, 0, len(results))
	for _, s := range results {
		if s != nil {
			snapshots = append(snapshots, *s)
		}
	}
	return snapshots, nil
}

// RunRolling wraps Rolling with run metadata and an aggregate summary.
func (p *Pipeline) RunRolling(ctx context.Context, symbol, timeframe string, bars []model.Bar, start, end time.Time, stepDays int) (*model.RollingResult, error) {
	snapshots, err := p.Rolling(ctx, symbol, timeframe, bars, start, end, stepDays)
	if err != nil {
		return nil, err
	}
	total := len(StepDates(start, end, stepDays))
	res := &model.RollingResult{
		Metadata: model.RunMetadata{
			Symbol:       symbol,
			Timeframe:    timeframe,
			GeneratedAt:  time.Now().UTC(),
			Start:        start,
			End:          end,
			StepDays:     stepDays,
			LookbackDays: p.settings.LookbackDays,
			TotalSteps:   total,
			Computed:     len(snapshots),
			Skipped:      total - len(snapshots),
			Parameters:   p.parameters(),
		},
		Snapshots: snapshots,
		Summary:   SummarizeRun(snapshots),
	}
	return res, nil
}

func (p *Pipeline) observe(symbol, outcome string, elapsed time.Duration, zones int) {
	if p.settings.Observer != nil {
		p.settings.Observer.ObserveStep(symbol, outcome, elapsed, zones)
	}
}

// SummarizeRun aggregates zone statistics over a rolling run.
func SummarizeRun(snapshots []model.Snapshot) model.RunSummary {
	var sum model.RunSummary
	var strength float64
	var lines, zones int
	for _, s := range snapshots {
		if s.Empty() {
			sum.EmptySnapshots++
		}
		for _, z := range s.Zones {
			if z.Kind == model.Resistance {
				sum.ResistanceZones++
			} else {
				sum.SupportZones++
			}
			strength += z.TotalStrength
			lines += len(z.ConvergingTrendlines)
			zones++
		}
	}
	if zones > 0 {
		sum.AvgStrength = strength / float64(zones)
		sum.AvgTrendlinesPerZone = float64(lines) / float64(zones)
	}
	return sum
}
