package monitor_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/monitor"
	"codeberg.org/mutker/nvidiamon/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFactory = errors.New()

// stubSource counts queries and reports a rising temperature so tests
// can tell samples apart.
type stubSource struct {
	mu      sync.Mutex
	failing bool
	queries int
}

func (s *stubSource) Query(_ int) (telemetry.Readings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries++
	if s.failing {
		return telemetry.Readings{}, errFactory.New(telemetry.ErrQueryFailed)
	}

	return telemetry.Readings{Temperature: telemetry.Float64(float64(s.queries))}, nil
}

func (s *stubSource) DeviceCount() (int, error) {
	return 2, nil
}

func (s *stubSource) DeviceName(index int) (string, error) {
	return fmt.Sprintf("Stub GPU %d", index), nil
}

func (s *stubSource) Close() error {
	return nil
}

func (s *stubSource) setFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

func (s *stubSource) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queries
}

// waitForSample polls TryLatest until a sample matching accept
// arrives or the deadline passes.
func waitForSample(t *testing.T, m *monitor.Monitor, accept func(telemetry.Sample) bool) telemetry.Sample {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for sample")
			return telemetry.Sample{}
		default:
		}

		if sample, ok := m.TryLatest(); ok && accept(sample) {
			return sample
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMonitorPublishesSamples(t *testing.T) {
	logger.Init("error", false)

	src := &stubSource{}
	m := monitor.New(src, 10*time.Millisecond)
	require.NoError(t, m.Start())
	defer m.Stop()

	sample := waitForSample(t, m, func(telemetry.Sample) bool { return true })

	assert.Equal(t, 0, sample.DeviceIndex)
	assert.Equal(t, "Stub GPU 0", sample.DeviceName)
	assert.False(t, sample.Timestamp.IsZero())
	require.NotNil(t, sample.Readings.Temperature)
	assert.Positive(t, *sample.Readings.Temperature)
}

func TestMonitorKeepsNewestSample(t *testing.T) {
	logger.Init("error", false)

	src := &stubSource{}
	m := monitor.New(src, 5*time.Millisecond)
	require.NoError(t, m.Start())
	defer m.Stop()

	// Let several polls land in the one-slot channel undrained.
	time.Sleep(150 * time.Millisecond)

	sample, ok := m.TryLatest()
	require.True(t, ok)
	require.NotNil(t, sample.Readings.Temperature)

	// The first published sample read 1; anything later proves the
	// slot was overwritten rather than queued.
	assert.Greater(t, *sample.Readings.Temperature, 1.0)
	assert.Positive(t, m.Dropped())
}

func TestMonitorSkipsFailedQueries(t *testing.T) {
	logger.Init("error", false)

	src := &stubSource{}
	src.setFailing(true)

	m := monitor.New(src, 5*time.Millisecond)
	require.NoError(t, m.Start())
	defer m.Stop()

	time.Sleep(100 * time.Millisecond)

	_, ok := m.TryLatest()
	assert.False(t, ok, "failed queries must not publish samples")
	assert.Positive(t, src.queryCount(), "worker keeps polling through failures")

	// The next successful poll publishes again.
	src.setFailing(false)
	waitForSample(t, m, func(telemetry.Sample) bool { return true })
}

func TestMonitorStops(t *testing.T) {
	logger.Init("error", false)

	src := &stubSource{}
	m := monitor.New(src, 20*time.Millisecond)
	require.NoError(t, m.Start())

	require.NoError(t, m.Stop())

	select {
	case <-m.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}

	// No further queries once stopped.
	stopped := src.queryCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, stopped, src.queryCount())
}

func TestMonitorSetDeviceSwitchesNextPoll(t *testing.T) {
	logger.Init("error", false)

	src := &stubSource{}
	m := monitor.New(src, 5*time.Millisecond)
	require.NoError(t, m.Start())
	defer m.Stop()

	waitForSample(t, m, func(s telemetry.Sample) bool { return s.DeviceIndex == 0 })

	m.SetDevice(1)
	assert.Equal(t, 1, m.Device())

	// Samples for device 0 may still be in flight; a consumer filters
	// on DeviceIndex, exactly as done here.
	sample := waitForSample(t, m, func(s telemetry.Sample) bool { return s.DeviceIndex == 1 })
	assert.Equal(t, "Stub GPU 1", sample.DeviceName)
}

func TestMonitorStartTwice(t *testing.T) {
	logger.Init("error", false)

	src := &stubSource{}
	m := monitor.New(src, 10*time.Millisecond)
	require.NoError(t, m.Start())
	defer m.Stop()

	err := m.Start()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, monitor.ErrAlreadyStarted))
}

func TestMonitorStopBeforeStart(t *testing.T) {
	src := &stubSource{}
	m := monitor.New(src, 10*time.Millisecond)

	assert.NoError(t, m.Stop())
}
