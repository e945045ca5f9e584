package calculator

import (
	"fmt"
	"math"

	"TrendCloud/internal/model"
)

// MinSeriesLength is the shortest bar sequence the pipeline accepts.
const MinSeriesLength = 5

// ValidateBar checks a single bar for a timestamp, sane OHLC relationships
// and non-negative volume.
func ValidateBar(b model.Bar) error {
	if b.Time.IsZero() {
		return fmt.Errorf("%w: missing timestamp", model.ErrInvalidInput)
	}
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return fmt.Errorf("%w: bar %s has non-positive price %v",
				model.ErrInvalidInput, b.Time.Format("2006-01-02"), p)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: bar %s high %.4f < low %.4f",
			model.ErrInvalidInput, b.Time.Format("2006-01-02"), b.High, b.Low)
	}
	if math.IsNaN(b.Volume) || b.Volume < 0 {
		return fmt.Errorf("%w: bar %s has negative volume %v",
			model.ErrInvalidInput, b.Time.Format("2006-01-02"), b.Volume)
	}
	return nil
}

// ValidateBars checks that bars form a usable series: at least MinSeriesLength
// bars, each one valid, timestamps strictly ascending.
func ValidateBars(bars []model.Bar) error {
	if len(bars) < MinSeriesLength {
		return fmt.Errorf("%w: need at least %d bars, got %d",
			model.ErrInvalidInput, MinSeriesLength, len(bars))
	}
	return ValidateEach(bars)
}

// ValidateEach runs ValidateBar on every bar and checks ordering, without a length guard.
func ValidateEach(bars []model.Bar) error {
	for i, b := range bars {
		if err := ValidateBar(b); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return fmt.Errorf("%w: bar %d at %s is not after %s", model.ErrInvalidInput,
				i, b.Time.Format("2006-01-02"), bars[i-1].Time.Format("2006-01-02"))
		}
	}
	return nil
}
