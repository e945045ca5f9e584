package model

import "errors"

var (
	// ErrInvalidInput marks a malformed bar series: too short, broken OHLC
	// relationships, bad prices or missing timestamps.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientData marks a lookback window with fewer bars than the
	// minimum viable count.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDegenerateFit marks a regression whose x values are all identical.
	ErrDegenerateFit = errors.New("degenerate fit")
)
