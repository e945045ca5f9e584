package model

import "time"

// PriceRange is a closed price interval.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ConvergenceZone is a price region where at least two trendlines agree at the horizon.
type ConvergenceZone struct {
	CenterPrice          float64       `json:"center_price"`
	PriceRange           PriceRange    `json:"price_range"`
	ConvergingTrendlines []string      `json:"converging_trendlines"`
	TotalStrength        float64       `json:"total_strength"`
	AvgConfidence        float64       `json:"avg_confidence"`
	Weight               float64       `json:"weight"`
	Kind                 TrendlineKind `json:"kind"`
}

// TrendCloudPoint is the externally consumed unit, one per zone.
type TrendCloudPoint struct {
	PriceLevel       float64       `json:"price_level"`
	Weight           float64       `json:"weight"`
	NormalizedWeight float64       `json:"normalized_weight"`
	Density          float64       `json:"density"`
	TrendlineCount   int           `json:"trendline_count"`
	Confidence       float64       `json:"confidence"`
	Kind             TrendlineKind `json:"kind"`
}

// SnapshotSummary aggregates the zones of one snapshot.
type SnapshotSummary struct {
	ZoneCount            int     `json:"zone_count"`
	SupportZones         int     `json:"support_zones"`
	ResistanceZones      int     `json:"resistance_zones"`
	AvgStrength          float64 `json:"avg_strength"`
	AvgTrendlinesPerZone float64 `json:"avg_trendlines_per_zone"`
	DominantPrice        float64 `json:"dominant_price"`
	DominantWeight       float64 `json:"dominant_weight"`
}

// Snapshot is the trend cloud computed for one calculation date.
// Sum of Points[i].Weight equals TotalWeight; TotalWeight is 0 when there are no zones.
type Snapshot struct {
	Symbol          string            `json:"symbol"`
	Timeframe       string            `json:"timeframe"`
	CalculationDate time.Time         `json:"calculation_date"`
	TargetDate      time.Time         `json:"target_date"`
	LookbackDays    int               `json:"lookback_days"`
	CurrentPrice    float64           `json:"current_price"`
	PivotCount      int               `json:"pivot_count"`
	TrendlineCount  int               `json:"trendline_count"`
	TotalWeight     float64           `json:"total_weight"`
	Zones           []ConvergenceZone `json:"zones"`
	Points          []TrendCloudPoint `json:"points"`
	Summary         SnapshotSummary   `json:"summary"`
}

// Empty reports whether the snapshot carries no signal.
func (s *Snapshot) Empty() bool {
	return len(s.Points) == 0
}

// RunParameters echoes the configuration a rolling run was computed with.
type RunParameters struct {
	HorizonDays          int     `json:"horizon_days"`
	Tolerance            float64 `json:"tolerance"`
	ConvergenceThreshold float64 `json:"convergence_threshold"`
	Temperature          float64 `json:"temperature"`
	TotalWeight          float64 `json:"total_weight"`
	MinZoneTrendlines    int     `json:"min_zone_trendlines"`
	MaxTrendlines        int     `json:"max_trendlines"`
	HalfLifeDays         float64 `json:"half_life_days"`
	MinPivotWeight       float64 `json:"min_pivot_weight"`
	Bins                 int     `json:"bins"`
}

// RunMetadata describes a rolling run.
type RunMetadata struct {
	Symbol       string        `json:"symbol"`
	Timeframe    string        `json:"timeframe"`
	GeneratedAt  time.Time     `json:"generated_at"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	StepDays     int           `json:"step_days"`
	LookbackDays int           `json:"lookback_days"`
	TotalSteps   int           `json:"total_steps"`
	Computed     int           `json:"computed"`
	Skipped      int           `json:"skipped"`
	Parameters   RunParameters `json:"parameters"`
}

// RunSummary aggregates all snapshots of a rolling run.
type RunSummary struct {
	SupportZones         int     `json:"support_zones"`
	ResistanceZones      int     `json:"resistance_zones"`
	AvgStrength          float64 `json:"avg_strength"`
	AvgTrendlinesPerZone float64 `json:"avg_trendlines_per_zone"`
	EmptySnapshots       int     `json:"empty_snapshots"`
}

// RollingResult is the exported form of a rolling run.
type RollingResult struct {
	Metadata  RunMetadata `json:"metadata"`
	Snapshots []Snapshot  `json:"snapshots"`
	Summary   RunSummary  `json:"summary"`
}
