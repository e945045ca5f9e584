package model

import "time"

// PivotKind distinguishes swing highs from swing lows.
type PivotKind string

const (
	PivotHigh PivotKind = "HIGH"
	PivotLow  PivotKind = "LOW"
)

// PivotCandidate is a single hit from one detection heuristic, before merging.
type PivotCandidate struct {
	Index    int       `json:"index"`
	Kind     PivotKind `json:"kind"`
	Method   string    `json:"method"`
	Strength float64   `json:"strength"`
	LogPrice float64   `json:"log_price"`
}

// Pivot is a merged swing point tied to one bar of the analysed window.
type Pivot struct {
	ID          string    `json:"id"`
	Index       int       `json:"index"`
	Time        time.Time `json:"time"`
	Price       float64   `json:"price"`
	LogPrice    float64   `json:"log_price"`
	Kind        PivotKind `json:"kind"`
	Strength    float64   `json:"strength"`
	Method      string    `json:"method"`
	Volume      float64   `json:"volume"`
	VolumeRatio float64   `json:"volume_ratio"` // volume / SMA20(volume), 0 before warm-up
	Deviation   float64   `json:"deviation"`    // (close - SMA20) / SMA20, 0 before warm-up
}
