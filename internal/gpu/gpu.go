// Package gpu reads NVIDIA device telemetry through NVML. It provides
// the driver-backed implementation of telemetry.Source; individual
// sensor reads are best-effort, a sensor the device lacks leaves the
// corresponding field nil instead of failing the whole sample.
package gpu

import (
	"sync"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/cache"
	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/telemetry"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	milliWattsToWatts = 1000

	// Device names never change and the count changes only on hotplug,
	// so both are cached rather than queried on every poll.
	nameCacheTTL  = 30 * time.Second
	countCacheTTL = 5 * time.Second
)

// Source queries NVIDIA devices through NVML
type Source struct {
	controller nvmlController

	count *cache.Value[int]

	mu    sync.Mutex
	names map[int]*cache.Value[string]
}

// New initializes NVML and returns a driver-backed telemetry source
func New() (*Source, error) {
	return newSource(&nvmlWrapper{})
}

func newSource(controller nvmlController) (*Source, error) {
	if err := controller.Initialize(); err != nil {
		return nil, err
	}

	s := &Source{
		controller: controller,
		count:      cache.NewValue[int](countCacheTTL),
		names:      make(map[int]*cache.Value[string]),
	}

	if count, err := s.DeviceCount(); err == nil {
		logger.Debug().Int("devices", count).Msg("NVML initialized")
	}

	return s, nil
}

// Query reads all supported sensors of the device at index. Only a
// missing device fails; unsupported sensors leave nil fields, and a
// device where every read failed reports ErrNoReadings so the caller
// skips the sample entirely.
func (s *Source) Query(index int) (telemetry.Readings, error) {
	device, err := s.controller.GetDevice(index)
	if err != nil {
		return telemetry.Readings{}, err
	}

	var readings telemetry.Readings

	if temp, ret := device.GetTemperature(nvml.TEMPERATURE_GPU); IsNVMLSuccess(ret) {
		readings.Temperature = telemetry.Float64(float64(temp))
	}

	if util, ret := device.GetUtilizationRates(); IsNVMLSuccess(ret) {
		readings.Utilization = telemetry.Float64(float64(util.Gpu))
		readings.MemoryUtilization = telemetry.Float64(float64(util.Memory))
	}

	if power, ret := device.GetPowerUsage(); IsNVMLSuccess(ret) {
		readings.PowerDraw = telemetry.Float64(float64(power) / milliWattsToWatts)
	}

	if speed, ret := device.GetFanSpeed(); IsNVMLSuccess(ret) {
		readings.FanSpeed = telemetry.Float64(float64(speed))
	}

	if clock, ret := device.GetClockInfo(nvml.CLOCK_GRAPHICS); IsNVMLSuccess(ret) {
		readings.CoreClock = telemetry.Float64(float64(clock))
	}

	if clock, ret := device.GetClockInfo(nvml.CLOCK_MEM); IsNVMLSuccess(ret) {
		readings.MemoryClock = telemetry.Float64(float64(clock))
	}

	if memory, ret := device.GetMemoryInfo(); IsNVMLSuccess(ret) {
		readings.MemoryUsed = telemetry.Uint64(memory.Used)
		readings.MemoryTotal = telemetry.Uint64(memory.Total)
	}

	if readings.Empty() {
		errFactory := errors.New()
		return telemetry.Readings{}, errFactory.New(ErrNoReadings)
	}

	return readings, nil
}

// DeviceCount returns the number of NVML devices
func (s *Source) DeviceCount() (int, error) {
	return s.count.Get(s.controller.GetDeviceCount)
}

// DeviceName returns the product name of the device at index
func (s *Source) DeviceName(index int) (string, error) {
	s.mu.Lock()
	entry, ok := s.names[index]
	if !ok {
		entry = cache.NewValue[string](nameCacheTTL)
		s.names[index] = entry
	}
	s.mu.Unlock()

	return entry.Get(func() (string, error) {
		device, err := s.controller.GetDevice(index)
		if err != nil {
			return "", err
		}

		name, ret := device.GetName()
		if !IsNVMLSuccess(ret) {
			errFactory := errors.New()
			return "", errFactory.Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
		}

		return name, nil
	})
}

// Close shuts NVML down
func (s *Source) Close() error {
	return s.controller.Shutdown()
}
