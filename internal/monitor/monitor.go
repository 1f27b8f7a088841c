// Package monitor runs the background sampling loop. One goroutine
// polls the telemetry source at a fixed interval and publishes each
// sample into a one-slot channel; the consumer drains it without ever
// blocking, so a slow consumer only costs dropped samples, never
// backpressure on the poller.
package monitor

import (
	"sync/atomic"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/telemetry"
)

// DefaultInterval is the polling interval used when none is given
const DefaultInterval = 500 * time.Millisecond

// Monitor owns the sampling goroutine. All coordination with the
// consumer goes through the Control atomics and the sample channel.
type Monitor struct {
	source   telemetry.Source
	interval time.Duration
	control  Control
	samples  chan telemetry.Sample
	done     chan struct{}
	started  atomic.Bool
	dropped  atomic.Uint64
}

// New creates a monitor polling source at the given interval. An
// interval of zero or less falls back to DefaultInterval.
func New(source telemetry.Source, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Monitor{
		source:   source,
		interval: interval,
		samples:  make(chan telemetry.Sample, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the sampling goroutine. Starting twice is an error.
func (m *Monitor) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		errFactory := errors.New()
		return errFactory.New(ErrAlreadyStarted)
	}

	go m.run()

	return nil
}

// Stop requests a shutdown and waits for the goroutine to exit. The
// wait is bounded: a worker stuck inside a driver query cannot be
// killed, only reported.
func (m *Monitor) Stop() error {
	if !m.started.Load() {
		return nil
	}

	m.control.RequestShutdown()

	select {
	case <-m.done:
		return nil
	case <-time.After(2*m.interval + time.Second):
		errFactory := errors.New()
		return errFactory.New(ErrShutdownTimeout)
	}
}

// TryLatest returns the most recent undrained sample without
// blocking. ok is false when no new sample has arrived since the
// last call.
func (m *Monitor) TryLatest() (telemetry.Sample, bool) {
	select {
	case sample := <-m.samples:
		return sample, true
	default:
		return telemetry.Sample{}, false
	}
}

// SetDevice switches which device the worker samples. The change
// takes effect on the next poll; a sample for the previous device may
// still be in flight, so consumers compare DeviceIndex before use.
func (m *Monitor) SetDevice(index int) {
	m.control.SetDevice(index)
}

// Device returns the currently selected device index
func (m *Monitor) Device() int {
	return m.control.Device()
}

// Dropped returns how many samples were overwritten before the
// consumer drained them
func (m *Monitor) Dropped() uint64 {
	return m.dropped.Load()
}

// Done is closed once the sampling goroutine has exited
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

func (m *Monitor) run() {
	defer close(m.done)

	for {
		if m.control.ShutdownRequested() {
			return
		}

		index := m.control.Device()
		readings, err := m.source.Query(index)
		if err != nil {
			// Transient failures cost one sample. The consumer keeps
			// whatever history it already has.
			logger.Debug().Err(err).Int("device", index).Msg("Skipping failed sample")
		} else {
			name, _ := m.source.DeviceName(index)
			m.publish(telemetry.Sample{
				DeviceIndex: index,
				DeviceName:  name,
				Timestamp:   time.Now(),
				Readings:    readings,
			})
		}

		time.Sleep(m.interval)
	}
}

// publish places the sample into the one-slot channel, evicting an
// undrained older sample first. The consumer therefore always sees
// the newest sample and never an out-of-order one.
func (m *Monitor) publish(sample telemetry.Sample) {
	for {
		select {
		case m.samples <- sample:
			return
		default:
		}

		select {
		case <-m.samples:
			m.dropped.Add(1)
		default:
		}
	}
}
