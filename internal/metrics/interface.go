package metrics

import (
	"context"
	"time"
)

// Collector is the surface the daemon records snapshots through. The
// disabled configuration yields a no-op collector, so callers never
// branch on whether persistence is on.
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository defines the interface for snapshot storage
type Repository interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot is one fully derived pipeline result: the raw readings of
// a sample together with everything the analyzers computed from it.
type Snapshot struct {
	Timestamp time.Time
	Device    DeviceMetrics
	Readings  ReadingMetrics
	Derived   DerivedMetrics
}

// DeviceMetrics identifies which device produced the snapshot
type DeviceMetrics struct {
	Index int
	Name  string
}

// ReadingMetrics carries the nullable sensor values. A nil field is
// persisted as NULL rather than a fake zero.
type ReadingMetrics struct {
	Temperature *float64
	Utilization *float64
	PowerDraw   *float64
	FanSpeed    *float64
	CoreClock   *float64
}

// DerivedMetrics carries the analyzer outputs
type DerivedMetrics struct {
	FanTarget   float64
	PowerTarget float64
	Trend       string
	Health      string
}
