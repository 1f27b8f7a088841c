package telemetry

import "time"

// Readings carries the sensor values from one device poll. A nil field
// means the sensor is unsupported or its read failed; consumers skip
// absent fields rather than buffering placeholder values.
type Readings struct {
	Temperature       *float64 // degrees Celsius
	Utilization       *float64 // percent
	MemoryUtilization *float64 // percent
	PowerDraw         *float64 // watts
	FanSpeed          *float64 // percent
	CoreClock         *float64 // MHz
	MemoryClock       *float64 // MHz
	MemoryUsed        *uint64  // bytes
	MemoryTotal       *uint64  // bytes
}

// Empty reports whether no sensor produced a value
func (r Readings) Empty() bool {
	return r == Readings{}
}

// Sample is one immutable snapshot of a device's telemetry. Samples are
// produced only by the sampling worker; consumers check DeviceIndex
// before buffering so a sample published just before a device switch
// cannot pollute the new device's history.
type Sample struct {
	DeviceIndex int
	DeviceName  string
	Timestamp   time.Time
	Readings    Readings
}

// Float64 returns a pointer to v, for building optional readings
func Float64(v float64) *float64 {
	return &v
}

// Uint64 returns a pointer to v, for building optional readings
func Uint64(v uint64) *uint64 {
	return &v
}
