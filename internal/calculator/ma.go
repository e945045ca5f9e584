package calculator

import (
	"math"

	"github.com/markcheno/go-talib"

	"TrendCloud/internal/model"
)

// SMASeries returns the simple moving average of values over period.
// Entries before the first full window are 0. Returns nil when there is not enough data.
func SMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	return talib.Sma(values, period)
}

// DeviationFromMA returns (value - ma) / ma, or 0 when the average is not available.
func DeviationFromMA(value float64, ma []float64, idx int) float64 {
	if idx < 0 || idx >= len(ma) || ma[idx] <= 0 {
		return 0
	}
	return (value - ma[idx]) / ma[idx]
}

// RatioToMA returns value / ma, or 0 when the average is not available.
func RatioToMA(value float64, ma []float64, idx int) float64 {
	if idx < 0 || idx >= len(ma) || ma[idx] <= 0 {
		return 0
	}
	return value / ma[idx]
}

// Closes extracts the close prices of bars.
func Closes(bars []model.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// LogCloses extracts ln(close) for every bar.
func LogCloses(bars []model.Bar) []float64 {
	logs := make([]float64, len(bars))
	for i, b := range bars {
		logs[i] = math.Log(b.Close)
	}
	return logs
}

// Volumes extracts the volumes of bars.
func Volumes(bars []model.Bar) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	return vols
}
