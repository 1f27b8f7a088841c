package history

import "codeberg.org/mutker/nvidiamon/internal/telemetry"

// MetricSet groups the per-device history buffers the consumer keeps.
// All buffers are cleared together on a device switch, since history
// from one device is meaningless for another.
type MetricSet struct {
	Temperature *Buffer[float64]
	Utilization *Buffer[float64]
	PowerDraw   *Buffer[float64]
	FanSpeed    *Buffer[float64]
	CoreClock   *Buffer[float64]
}

// NewMetricSet creates the buffer group with a shared capacity
func NewMetricSet(capacity int) *MetricSet {
	return &MetricSet{
		Temperature: NewBuffer[float64](capacity),
		Utilization: NewBuffer[float64](capacity),
		PowerDraw:   NewBuffer[float64](capacity),
		FanSpeed:    NewBuffer[float64](capacity),
		CoreClock:   NewBuffer[float64](capacity),
	}
}

// Observe pushes the present fields of one poll's readings into their
// buffers. Absent fields are skipped, never padded.
func (m *MetricSet) Observe(r telemetry.Readings) {
	if r.Temperature != nil {
		m.Temperature.Push(*r.Temperature)
	}
	if r.Utilization != nil {
		m.Utilization.Push(*r.Utilization)
	}
	if r.PowerDraw != nil {
		m.PowerDraw.Push(*r.PowerDraw)
	}
	if r.FanSpeed != nil {
		m.FanSpeed.Push(*r.FanSpeed)
	}
	if r.CoreClock != nil {
		m.CoreClock.Push(*r.CoreClock)
	}
}

// Reset clears every buffer in the set
func (m *MetricSet) Reset() {
	m.Temperature.Clear()
	m.Utilization.Clear()
	m.PowerDraw.Clear()
	m.FanSpeed.Clear()
	m.CoreClock.Clear()
}
