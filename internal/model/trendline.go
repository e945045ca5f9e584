package model

import (
	"math"
	"time"
)

// TrendlineKind classifies a trendline as support or resistance.
type TrendlineKind string

const (
	Support    TrendlineKind = "SUPPORT"
	Resistance TrendlineKind = "RESISTANCE"
)

// Trendline is a log-price line fitted through two or more pivots.
// x is measured in days since Origin, y is ln(price).
type Trendline struct {
	ID               string        `json:"id"`
	Points           []Pivot       `json:"points"`
	Origin           time.Time     `json:"origin"`
	Slope            float64       `json:"slope"`
	Intercept        float64       `json:"intercept"`
	RegularSlope     float64       `json:"regular_slope"`     // price per day
	RegularIntercept float64       `json:"regular_intercept"` // price at Origin
	RSquared         float64       `json:"r_squared"`
	Kind             TrendlineKind `json:"kind"`
	AvgDeviation     float64       `json:"avg_deviation"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	DailyGrowthRate  float64       `json:"daily_growth_rate"`
	Iterations       int           `json:"iterations"`
	WeightedStrength float64       `json:"weighted_strength"`
	AvgWeight        float64       `json:"avg_weight"`
}

// Strength is the number of pivots the line connects.
func (t *Trendline) Strength() int {
	return len(t.Points)
}

// DaysSinceOrigin converts a timestamp to the line's x coordinate.
func (t *Trendline) DaysSinceOrigin(ts time.Time) float64 {
	return ts.Sub(t.Origin).Hours() / 24
}

// LogPriceAt evaluates the line in log space.
func (t *Trendline) LogPriceAt(ts time.Time) float64 {
	return t.Slope*t.DaysSinceOrigin(ts) + t.Intercept
}

// PriceAt evaluates the line in price space.
func (t *Trendline) PriceAt(ts time.Time) float64 {
	return math.Exp(t.LogPriceAt(ts))
}
