package recorder

import (
	"time"

	"TrendCloud/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordSnapshot(_ *model.Snapshot) error {
	return nil
}

func (n *NoopRecorder) RecordRun(_ *model.RollingResult) error {
	return nil
}

func (n *NoopRecorder) LoadSnapshots(_, _ string, _, _ time.Time) ([]model.Snapshot, error) {
	return nil, nil
}

func (n *NoopRecorder) LatestSnapshot(_, _ string) (*model.Snapshot, error) {
	return nil, nil
}

func (n *NoopRecorder) Close() error { return nil }
