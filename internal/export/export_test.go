package export

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot() *metrics.Snapshot {
	temp := 71.0
	util := 88.0

	return &metrics.Snapshot{
		Timestamp: time.Unix(1700000000, 0),
		Device:    metrics.DeviceMetrics{Index: 1, Name: "Test GPU"},
		Readings: metrics.ReadingMetrics{
			Temperature: &temp,
			Utilization: &util,
		},
		Derived: metrics.DerivedMetrics{
			FanTarget:   55,
			PowerTarget: 90,
			Trend:       "rising",
			Health:      "good",
		},
	}
}

func TestNewWithoutBrokerIsNoop(t *testing.T) {
	logger.Init("error", false)

	exporter, err := New(Config{})
	require.NoError(t, err)

	assert.NoError(t, exporter.Publish(context.Background(), snapshot()))
	assert.NoError(t, exporter.Close())
}

func TestNewRejectsInvalidQoS(t *testing.T) {
	_, err := New(Config{Broker: "localhost:1883", QoS: 3})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))
}

func TestTopicLayout(t *testing.T) {
	e := &mqttExporter{
		cfg:      Config{TopicPrefix: "nvidiamon"},
		hostname: "workstation",
	}

	assert.Equal(t, "nvidiamon/workstation/gpu0/telemetry", e.topic(0))
	assert.Equal(t, "nvidiamon/workstation/gpu3/telemetry", e.topic(3))
}

func TestPayloadShape(t *testing.T) {
	body, err := json.Marshal(newPayload(snapshot()))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.EqualValues(t, 1700000000, decoded["timestamp"])
	assert.EqualValues(t, 1, decoded["device_index"])
	assert.Equal(t, "Test GPU", decoded["device_name"])
	assert.EqualValues(t, 71, decoded["temperature"])
	assert.EqualValues(t, 55, decoded["fan_target"])
	assert.Equal(t, "rising", decoded["trend"])
	assert.Equal(t, "good", decoded["health"])

	// Readings the sensor never produced stay out of the payload.
	assert.NotContains(t, decoded, "power_draw")
	assert.NotContains(t, decoded, "fan_speed")
	assert.NotContains(t, decoded, "core_clock")
}

func TestPublishBacksOffAfterFailedDial(t *testing.T) {
	logger.Init("error", false)

	// Port 1 refuses immediately, so the first publish fails on dial
	// and starts the backoff window.
	exporter, err := New(Config{Broker: "127.0.0.1:1", TopicPrefix: "nvidiamon"})
	require.NoError(t, err)
	defer exporter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = exporter.Publish(ctx, snapshot())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrConnectFailed))

	// Inside the window the exporter fails fast without redialing.
	err = exporter.Publish(ctx, snapshot())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrNotConnected))

	e, ok := exporter.(*mqttExporter)
	require.True(t, ok)
	assert.Equal(t, uint64(2), e.failed.Load())
	assert.Equal(t, initialBackoff, e.backoff)
}

func TestCloseBeforeConnect(t *testing.T) {
	exporter, err := New(Config{Broker: "localhost:1883"})
	require.NoError(t, err)

	assert.NoError(t, exporter.Close())
}
