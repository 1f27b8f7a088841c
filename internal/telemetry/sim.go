package telemetry

import (
	"fmt"
	"sync"

	"codeberg.org/mutker/nvidiamon/internal/errors"
)

const (
	simPeriod   = 100
	simBaseTemp = 40.0
	simPeakTemp = 90.0
)

// SimulatedSource is a deterministic Source for machines without a GPU.
// Each device produces a triangular temperature wave between 40 and 90
// degrees with utilization, power draw, fan speed and clocks derived
// from it, so downstream trend and curve behavior is reproducible.
type SimulatedSource struct {
	devices int
	mu      sync.Mutex
	steps   map[int]int
}

func NewSimulatedSource(devices int) *SimulatedSource {
	if devices < 1 {
		devices = 1
	}

	return &SimulatedSource{
		devices: devices,
		steps:   make(map[int]int),
	}
}

func (s *SimulatedSource) Query(deviceIndex int) (Readings, error) {
	errFactory := errors.New()

	if deviceIndex < 0 || deviceIndex >= s.devices {
		return Readings{}, errFactory.WithData(ErrDeviceNotFound, deviceIndex)
	}

	s.mu.Lock()
	step := s.steps[deviceIndex]
	s.steps[deviceIndex]++
	s.mu.Unlock()

	// Stagger devices so they do not move in lockstep
	phase := (step + deviceIndex*17) % simPeriod

	half := simPeriod / 2
	span := simPeakTemp - simBaseTemp
	var temp float64
	if phase < half {
		temp = simBaseTemp + span*float64(phase)/float64(half)
	} else {
		temp = simPeakTemp - span*float64(phase-half)/float64(half)
	}

	util := clampF((temp-simBaseTemp)*2, 0, 100)
	power := 60 + util*1.8
	fan := clampF((temp-simBaseTemp)*2, 0, 100)
	coreClock := 1400 + util*7
	memClock := 7000.0
	memTotal := uint64(8 << 30)
	memUsed := uint64(float64(memTotal) * util / 100)

	return Readings{
		Temperature: Float64(temp),
		Utilization: Float64(util),
		PowerDraw:   Float64(power),
		FanSpeed:    Float64(fan),
		CoreClock:   Float64(coreClock),
		MemoryClock: Float64(memClock),
		MemoryUsed:  Uint64(memUsed),
		MemoryTotal: Uint64(memTotal),
	}, nil
}

func (s *SimulatedSource) DeviceCount() (int, error) {
	return s.devices, nil
}

func (s *SimulatedSource) DeviceName(deviceIndex int) (string, error) {
	errFactory := errors.New()

	if deviceIndex < 0 || deviceIndex >= s.devices {
		return "", errFactory.WithData(ErrDeviceNotFound, deviceIndex)
	}

	return fmt.Sprintf("Simulated GPU %d", deviceIndex), nil
}

func (s *SimulatedSource) Close() error {
	return nil
}

func clampF(value, minValue, maxValue float64) float64 {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
