package history_test

import (
	"testing"

	"codeberg.org/mutker/nvidiamon/internal/history"
	"codeberg.org/mutker/nvidiamon/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferKeepsLastNInOrder(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushes   int
	}{
		{name: "under capacity", capacity: 8, pushes: 5},
		{name: "exactly capacity", capacity: 8, pushes: 8},
		{name: "over capacity", capacity: 8, pushes: 29},
		{name: "single slot", capacity: 1, pushes: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := history.NewBuffer[int](tt.capacity)

			for i := 0; i < tt.pushes; i++ {
				buf.Push(i)
				assert.LessOrEqual(t, buf.Len(), buf.Cap())
			}

			expectedLen := tt.pushes
			if expectedLen > tt.capacity {
				expectedLen = tt.capacity
			}
			require.Equal(t, expectedLen, buf.Len())

			want := make([]int, 0, expectedLen)
			for i := tt.pushes - expectedLen; i < tt.pushes; i++ {
				want = append(want, i)
			}
			assert.Equal(t, want, buf.Values())
		})
	}
}

func TestBufferLatest(t *testing.T) {
	buf := history.NewBuffer[float64](3)

	_, ok := buf.Latest()
	assert.False(t, ok)

	buf.Push(1.5)
	buf.Push(2.5)

	latest, ok := buf.Latest()
	require.True(t, ok)
	assert.Equal(t, 2.5, latest)

	buf.Push(3.5)
	buf.Push(4.5)

	latest, ok = buf.Latest()
	require.True(t, ok)
	assert.Equal(t, 4.5, latest)
}

func TestBufferClear(t *testing.T) {
	buf := history.NewBuffer[int](4)
	for i := 0; i < 6; i++ {
		buf.Push(i)
	}

	buf.Clear()

	assert.True(t, buf.IsEmpty())
	assert.Zero(t, buf.Len())
	assert.Nil(t, buf.Values())
	assert.Equal(t, 4, buf.Cap())

	buf.Push(42)
	assert.Equal(t, []int{42}, buf.Values())
}

func TestBufferDoStopsEarly(t *testing.T) {
	buf := history.NewBuffer[int](5)
	for i := 0; i < 5; i++ {
		buf.Push(i)
	}

	var seen []int
	buf.Do(func(v int) bool {
		seen = append(seen, v)
		return v < 2
	})

	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestBufferDefaultCapacity(t *testing.T) {
	buf := history.NewBuffer[int](0)
	assert.Equal(t, history.DefaultCapacity, buf.Cap())
}

func TestMetricSetObserveSkipsAbsent(t *testing.T) {
	set := history.NewMetricSet(10)

	set.Observe(telemetry.Readings{
		Temperature: telemetry.Float64(62),
		PowerDraw:   telemetry.Float64(180),
	})
	set.Observe(telemetry.Readings{
		Temperature: telemetry.Float64(63),
	})

	assert.Equal(t, []float64{62, 63}, set.Temperature.Values())
	assert.Equal(t, []float64{180}, set.PowerDraw.Values())
	assert.True(t, set.Utilization.IsEmpty())
	assert.True(t, set.FanSpeed.IsEmpty())
}

func TestMetricSetReset(t *testing.T) {
	set := history.NewMetricSet(10)

	set.Observe(telemetry.Readings{
		Temperature: telemetry.Float64(70),
		Utilization: telemetry.Float64(55),
		PowerDraw:   telemetry.Float64(200),
		FanSpeed:    telemetry.Float64(40),
		CoreClock:   telemetry.Float64(1800),
	})
	require.False(t, set.Temperature.IsEmpty())

	set.Reset()

	assert.True(t, set.Temperature.IsEmpty())
	assert.True(t, set.Utilization.IsEmpty())
	assert.True(t, set.PowerDraw.IsEmpty())
	assert.True(t, set.FanSpeed.IsEmpty())
	assert.True(t, set.CoreClock.IsEmpty())
}
