package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/analysis"
	"codeberg.org/mutker/nvidiamon/internal/config"
	"codeberg.org/mutker/nvidiamon/internal/curve"
	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/export"
	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/history"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/metrics"
	"codeberg.org/mutker/nvidiamon/internal/monitor"
	"codeberg.org/mutker/nvidiamon/internal/pid"
	"codeberg.org/mutker/nvidiamon/internal/telemetry"
)

// GPUState is one tick's view of the monitored device: the raw sample
// plus everything derived from it and from the accumulated history.
type GPUState struct {
	Sample      telemetry.Sample
	FanTarget   float64
	PowerTarget float64
	Trend       analysis.Trend
	Health      analysis.Health
	Temperature analysis.WindowStats
}

type daemon struct {
	source    telemetry.Source
	mon       *monitor.Monitor
	collector metrics.Collector
	exporter  export.Exporter
	watcher   *curve.Watcher

	// fileProfiles overlays the built-in profiles; replaced wholesale
	// on a successful profile file reload, never mutated in place.
	fileProfiles curve.Profiles
	fanCurve     *curve.Curve
	powerCurve   *curve.Curve

	set       *history.MetricSet
	prevFan   float64
	prevPower float64

	profilesCh chan curve.Profiles
	reloadCh   chan os.Signal
}

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.EffectiveLogLevel(), logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to acquire pidfile")
	}
	defer pid.Remove()

	if err := run(); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	logger.Info().Msg("Exiting...")
}

func run() error {
	src, err := buildSource()
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close telemetry source")
		}
	}()

	d := &daemon{
		source:     src,
		set:        history.NewMetricSet(history.DefaultCapacity),
		profilesCh: make(chan curve.Profiles, 1),
		reloadCh:   make(chan os.Signal, 1),
	}

	if err := checkDevice(src, cfg.Device); err != nil {
		return err
	}

	if cfg.Profiles != "" {
		d.fileProfiles, err = curve.LoadProfiles(cfg.Profiles)
		if err != nil {
			return err
		}

		d.watcher, err = curve.Watch(cfg.Profiles, func(fresh curve.Profiles) {
			// One-slot overwrite: the loop only ever needs the
			// newest profile set.
			select {
			case <-d.profilesCh:
			default:
			}
			d.profilesCh <- fresh
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := d.watcher.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close profile watcher")
			}
		}()
	}

	if err := d.rebuildCurves(); err != nil {
		return err
	}

	d.collector, err = metrics.NewService(metricsConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := d.collector.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close metrics collector")
		}
	}()

	d.exporter, err = export.New(export.Config{
		Broker:      cfg.MQTTBroker,
		TopicPrefix: cfg.MQTTTopic,
		QoS:         byte(cfg.MQTTQoS),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := d.exporter.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close exporter")
		}
	}()

	d.mon = monitor.New(src, time.Duration(cfg.SampleInterval)*time.Millisecond)
	d.mon.SetDevice(cfg.Device)
	if err := d.mon.Start(); err != nil {
		return err
	}
	defer func() {
		if err := d.mon.Stop(); err != nil {
			logger.Error().Err(err).Msg("Sampling worker did not stop cleanly")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, d.reloadCh)

	return d.loop(ctx)
}

func buildSource() (telemetry.Source, error) {
	if cfg.Simulate {
		logger.Info().Msg("Using simulated telemetry source")
		return telemetry.NewSimulatedSource(cfg.Device + 1), nil
	}

	return gpu.New()
}

func checkDevice(src telemetry.Source, index int) error {
	errFactory := errors.New()

	count, err := src.DeviceCount()
	if err != nil {
		return err
	}
	if index >= count {
		return errFactory.WithData(telemetry.ErrDeviceNotFound, struct {
			Device  int
			Devices int
		}{index, count})
	}

	name, err := src.DeviceName(index)
	if err != nil {
		return err
	}
	logger.Info().
		Int("device", index).
		Int("devices", count).
		Str("name", name).
		Msg("Monitoring GPU")

	return nil
}

func metricsConfig() metrics.Config {
	mc := metrics.DefaultConfig()
	mc.Enabled = cfg.Metrics
	mc.DBPath = cfg.Database

	return mc
}

func trendConfig() analysis.TrendConfig {
	return analysis.TrendConfig{
		Window:     cfg.TrendWindow,
		MinSamples: cfg.TrendMinSamples,
		Threshold:  cfg.TrendThreshold,
	}
}

func handleSignals(cancel context.CancelFunc, reload chan<- os.Signal) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigs {
		if sig == syscall.SIGHUP {
			select {
			case reload <- sig:
			default:
			}

			continue
		}

		logger.Info().Msg("Received termination signal.")
		cancel()

		return
	}
}

func (d *daemon) loop(ctx context.Context) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("invalid interval: %d", cfg.Interval)
	}

	interval := time.Duration(cfg.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.reloadCh:
			d.reloadConfig()
		case fresh := <-d.profilesCh:
			d.applyProfiles(fresh)
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick drains the worker's slot and processes whatever arrived. A tick
// without a fresh sample is a no-op; the loop never waits on the worker.
func (d *daemon) tick(ctx context.Context) {
	sample, ok := d.mon.TryLatest()
	if !ok {
		return
	}

	if sample.DeviceIndex != d.mon.Device() {
		logger.Debug().
			Int("device", sample.DeviceIndex).
			Msg("Discarding stale sample from previous device")

		return
	}

	d.set.Observe(sample.Readings)

	state := d.derive(sample)
	d.logGPUState(state)

	snapshot := buildSnapshot(state)
	if err := d.collector.Record(ctx, snapshot); err != nil {
		logger.Error().Err(err).Msg("Failed to record sample")
	}
	if err := d.exporter.Publish(ctx, snapshot); err != nil {
		logger.Debug().Err(err).Msg("Failed to publish sample")
	}
}

func (d *daemon) derive(sample telemetry.Sample) GPUState {
	state := GPUState{
		Sample:      sample,
		FanTarget:   d.prevFan,
		PowerTarget: d.prevPower,
	}

	if temp := sample.Readings.Temperature; temp != nil {
		state.FanTarget = d.fanCurve.Evaluate(*temp, d.prevFan)
		state.PowerTarget = d.powerCurve.Evaluate(*temp, d.prevPower)
		d.prevFan = state.FanTarget
		d.prevPower = state.PowerTarget
	}

	temps := d.set.Temperature.Values()
	state.Trend = analysis.TrendOf(temps, trendConfig())
	state.Health = analysis.Classify(sample.Readings.Temperature, float64(cfg.Warning), float64(cfg.Critical))
	state.Temperature = analysis.Stats(temps)

	return state
}

func (d *daemon) reloadConfig() {
	fresh, err := config.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("Ignoring invalid config reload")

		return
	}

	cfg = fresh
	logger.SetLogLevel(logger.ParseLevel(cfg.EffectiveLogLevel()))

	// The watcher stays bound to the path given at startup; a changed
	// profiles path still gets a one-shot read here.
	if cfg.Profiles != "" {
		loaded, err := curve.LoadProfiles(cfg.Profiles)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.Profiles).Msg("Keeping previous profile file")
		} else {
			d.fileProfiles = loaded
		}
	} else {
		d.fileProfiles = nil
	}

	if err := d.rebuildCurves(); err != nil {
		logger.Warn().Err(err).Msg("Keeping previous curves")
	}

	if cfg.Device != d.mon.Device() {
		d.switchDevice(cfg.Device)
	}

	logger.Info().Msg("Config reloaded")
}

func (d *daemon) applyProfiles(fresh curve.Profiles) {
	d.fileProfiles = fresh
	if err := d.rebuildCurves(); err != nil {
		logger.Warn().Err(err).Msg("Keeping previous curves")

		return
	}

	logger.Info().Int("profiles", len(fresh)).Msg("Applied reloaded curve profiles")
}

// rebuildCurves resolves the configured profiles against the built-ins
// overlaid with the profile file, and resets the carried outputs so the
// new curves start without hysteresis state from the old ones.
func (d *daemon) rebuildCurves() error {
	fanCfg, err := curve.FanProfiles().Merge(d.fileProfiles).Resolve(cfg.FanProfile)
	if err != nil {
		return err
	}
	fan, err := curve.New(fanCfg.WithHysteresis(float64(cfg.Hysteresis)))
	if err != nil {
		return err
	}

	powerCfg, err := curve.PowerProfiles().Merge(d.fileProfiles).Resolve(cfg.PowerProfile)
	if err != nil {
		return err
	}
	power, err := curve.New(powerCfg)
	if err != nil {
		return err
	}

	d.fanCurve = fan
	d.powerCurve = power
	d.prevFan = 0
	d.prevPower = 0

	return nil
}

// switchDevice clears per-device state before the worker starts polling
// the new device, so a stale sample can never seed the new history.
func (d *daemon) switchDevice(index int) {
	count, err := d.source.DeviceCount()
	if err == nil && index >= count {
		logger.Warn().
			Int("device", index).
			Int("devices", count).
			Msg("Ignoring out of range device")

		return
	}

	d.set.Reset()
	d.prevFan = 0
	d.prevPower = 0
	d.mon.SetDevice(index)

	logger.Info().Int("device", index).Msg("Switched monitored device")
}

func buildSnapshot(state GPUState) *metrics.Snapshot {
	r := state.Sample.Readings

	return &metrics.Snapshot{
		Timestamp: state.Sample.Timestamp,
		Device: metrics.DeviceMetrics{
			Index: state.Sample.DeviceIndex,
			Name:  state.Sample.DeviceName,
		},
		Readings: metrics.ReadingMetrics{
			Temperature: r.Temperature,
			Utilization: r.Utilization,
			PowerDraw:   r.PowerDraw,
			FanSpeed:    r.FanSpeed,
			CoreClock:   r.CoreClock,
		},
		Derived: metrics.DerivedMetrics{
			FanTarget:   state.FanTarget,
			PowerTarget: state.PowerTarget,
			Trend:       state.Trend.String(),
			Health:      state.Health.String(),
		},
	}
}

func (d *daemon) logGPUState(state GPUState) {
	r := state.Sample.Readings

	if logger.ParseLevel(cfg.EffectiveLogLevel()) == logger.DebugLevel {
		logger.Debug().
			Int("device", state.Sample.DeviceIndex).
			Str("device_name", state.Sample.DeviceName).
			Interface("temperature", r.Temperature).
			Interface("utilization", r.Utilization).
			Interface("memory_utilization", r.MemoryUtilization).
			Interface("power_draw", r.PowerDraw).
			Interface("fan_speed", r.FanSpeed).
			Interface("core_clock", r.CoreClock).
			Interface("memory_clock", r.MemoryClock).
			Interface("memory_used", r.MemoryUsed).
			Interface("memory_total", r.MemoryTotal).
			Float64("fan_target", state.FanTarget).
			Float64("power_target", state.PowerTarget).
			Float64("avg_temperature", state.Temperature.Average).
			Float64("peak_temperature", state.Temperature.Peak).
			Str("trend", state.Trend.String()).
			Str("health", state.Health.String()).
			Uint64("dropped_samples", d.mon.Dropped()).
			Int("hysteresis", cfg.Hysteresis).
			Str("fan_profile", cfg.FanProfile).
			Str("power_profile", cfg.PowerProfile).
			Msg("")
	} else if cfg.Verbose {
		logger.Info().
			Interface("temperature", r.Temperature).
			Float64("fan_target", state.FanTarget).
			Float64("power_target", state.PowerTarget).
			Float64("avg_temperature", state.Temperature.Average).
			Str("trend", state.Trend.String()).
			Str("health", state.Health.String()).
			Msg("")
	}
}
