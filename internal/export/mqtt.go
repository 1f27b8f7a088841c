// Package export streams derived snapshots to an MQTT broker, one
// JSON message per consumer tick on a per-device topic. The broker is
// optional infrastructure: connections are opened lazily on first
// publish and failures back off rather than blocking the pipeline.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/metrics"
	"github.com/eclipse/paho.golang/paho"
)

const (
	keepAliveSeconds = 30

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

type Config struct {
	Broker      string // host:port, empty disables export
	TopicPrefix string
	QoS         byte
	ClientID    string
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.QoS > 2 {
		return errFactory.WithMessage(ErrInvalidConfig, "mqtt qos must be 0, 1 or 2")
	}

	return nil
}

// payload is the wire shape of one snapshot. Absent readings are
// omitted instead of encoded as zeroes.
type payload struct {
	Timestamp   int64    `json:"timestamp"`
	DeviceIndex int      `json:"device_index"`
	DeviceName  string   `json:"device_name"`
	Temperature *float64 `json:"temperature,omitempty"`
	Utilization *float64 `json:"utilization,omitempty"`
	PowerDraw   *float64 `json:"power_draw,omitempty"`
	FanSpeed    *float64 `json:"fan_speed,omitempty"`
	CoreClock   *float64 `json:"core_clock,omitempty"`
	FanTarget   float64  `json:"fan_target"`
	PowerTarget float64  `json:"power_target"`
	Trend       string   `json:"trend"`
	Health      string   `json:"health"`
}

func newPayload(snapshot *metrics.Snapshot) payload {
	return payload{
		Timestamp:   snapshot.Timestamp.Unix(),
		DeviceIndex: snapshot.Device.Index,
		DeviceName:  snapshot.Device.Name,
		Temperature: snapshot.Readings.Temperature,
		Utilization: snapshot.Readings.Utilization,
		PowerDraw:   snapshot.Readings.PowerDraw,
		FanSpeed:    snapshot.Readings.FanSpeed,
		CoreClock:   snapshot.Readings.CoreClock,
		FanTarget:   snapshot.Derived.FanTarget,
		PowerTarget: snapshot.Derived.PowerTarget,
		Trend:       snapshot.Derived.Trend,
		Health:      snapshot.Derived.Health,
	}
}

type mqttExporter struct {
	cfg      Config
	hostname string

	mu          sync.Mutex
	client      *paho.Client
	backoff     time.Duration
	nextAttempt time.Time

	published atomic.Uint64
	failed    atomic.Uint64
}

// New builds an exporter for the given configuration. An empty broker
// address yields a no-op exporter. No connection is attempted here;
// the first Publish dials, so the daemon starts fine with the broker
// down.
func New(cfg Config) (Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Broker == "" {
		logger.Debug().Msg("MQTT export disabled, using no-op exporter")
		return &noopExporter{}, nil
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}

	if cfg.ClientID == "" {
		cfg.ClientID = "nvidiamon-" + hostname
	}

	return &mqttExporter{
		cfg:      cfg,
		hostname: hostname,
	}, nil
}

func (e *mqttExporter) Publish(ctx context.Context, snapshot *metrics.Snapshot) error {
	errFactory := errors.New()

	if snapshot == nil {
		return errFactory.WithMessage(ErrPublishFailed, "nil snapshot")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	client, err := e.ensureConnected(ctx)
	if err != nil {
		e.failed.Add(1)
		return err
	}

	body, err := json.Marshal(newPayload(snapshot))
	if err != nil {
		e.failed.Add(1)
		return errFactory.Wrap(ErrPublishFailed, err)
	}

	_, err = client.Publish(ctx, &paho.Publish{
		QoS:     e.cfg.QoS,
		Topic:   e.topic(snapshot.Device.Index),
		Payload: body,
	})
	if err != nil {
		// Drop the client so the next publish redials instead of
		// reusing a connection in an unknown state.
		e.dropClientLocked()
		e.failed.Add(1)
		return errFactory.Wrap(ErrPublishFailed, err)
	}

	e.published.Add(1)

	return nil
}

func (e *mqttExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return nil
	}

	err := e.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	e.client = nil

	logger.Info().
		Uint64("published", e.published.Load()).
		Uint64("failed", e.failed.Load()).
		Msg("MQTT exporter closed")

	if err != nil {
		errFactory := errors.New()
		return errFactory.Wrap(ErrDisconnectFailed, err)
	}

	return nil
}

// ensureConnected returns a connected client, dialing if necessary.
// Failed attempts push the next one out by a doubling backoff capped
// at maxBackoff; calls inside the backoff window fail fast. Callers
// hold e.mu.
func (e *mqttExporter) ensureConnected(ctx context.Context) (*paho.Client, error) {
	errFactory := errors.New()

	if e.client != nil {
		return e.client, nil
	}

	if time.Now().Before(e.nextAttempt) {
		return nil, errFactory.WithMessage(ErrNotConnected,
			fmt.Sprintf("broker unreachable, retrying in %s", time.Until(e.nextAttempt).Round(time.Second)))
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", e.cfg.Broker)
	if err != nil {
		e.noteFailure()
		return nil, errFactory.Wrap(ErrConnectFailed, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		Conn:     conn,
		ClientID: e.cfg.ClientID,
		OnClientError: func(err error) {
			logger.Debug().Err(err).Msg("MQTT client error")
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			logger.Debug().Int("reason_code", int(d.ReasonCode)).Msg("MQTT server disconnect")
		},
	})

	connack, err := client.Connect(ctx, &paho.Connect{
		ClientID:   e.cfg.ClientID,
		CleanStart: true,
		KeepAlive:  keepAliveSeconds,
	})
	if err != nil {
		_ = conn.Close()
		e.noteFailure()
		return nil, errFactory.Wrap(ErrConnectFailed, err)
	}
	if connack != nil && connack.ReasonCode >= 0x80 {
		_ = conn.Close()
		e.noteFailure()
		return nil, errFactory.WithData(ErrConnectFailed, struct {
			ReasonCode byte
		}{
			ReasonCode: connack.ReasonCode,
		})
	}

	logger.Info().
		Str("broker", e.cfg.Broker).
		Str("client_id", e.cfg.ClientID).
		Msg("Connected to MQTT broker")

	e.client = client
	e.backoff = 0
	e.nextAttempt = time.Time{}

	return client, nil
}

func (e *mqttExporter) dropClientLocked() {
	if e.client == nil {
		return
	}
	_ = e.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	e.client = nil
}

func (e *mqttExporter) noteFailure() {
	if e.backoff == 0 {
		e.backoff = initialBackoff
	} else {
		e.backoff *= 2
		if e.backoff > maxBackoff {
			e.backoff = maxBackoff
		}
	}
	e.nextAttempt = time.Now().Add(e.backoff)

	logger.Debug().
		Str("broker", e.cfg.Broker).
		Dur("backoff", e.backoff).
		Msg("MQTT connect failed, backing off")
}

func (e *mqttExporter) topic(deviceIndex int) string {
	return fmt.Sprintf("%s/%s/gpu%d/telemetry", e.cfg.TopicPrefix, e.hostname, deviceIndex)
}
