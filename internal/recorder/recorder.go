package recorder

import (
	"time"

	"TrendCloud/internal/model"
)

// Recorder persists computed trend clouds for later analysis. Bars are never stored.
type Recorder interface {
	// RecordSnapshot stores snap, replacing any earlier snapshot for the same
	// symbol, timeframe and calculation date.
	RecordSnapshot(snap *model.Snapshot) error
	// RecordRun stores the run metadata and every snapshot of a rolling run.
	RecordRun(res *model.RollingResult) error
	// LoadSnapshots returns stored snapshots with from <= calculation date <= to, oldest first.
	LoadSnapshots(symbol, timeframe string, from, to time.Time) ([]model.Snapshot, error)
	// LatestSnapshot returns the most recent snapshot, or nil when none is stored.
	LatestSnapshot(symbol, timeframe string) (*model.Snapshot, error)
	Close() error
}
