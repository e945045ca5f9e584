package collector

import (
	"context"

	"TrendCloud/internal/model"
)

// Fetcher loads daily bars for a symbol from an external provider.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.Bar, error)
	Name() string
}
