package telemetry

// Source is a read-only sensor query boundary keyed by device index.
// Implementations must tolerate concurrent calls from the sampling
// worker and the consumer loop.
type Source interface {
	// Query issues one poll against the given device and returns a
	// best-effort bag of readings. Individual fields may be absent;
	// an error means no usable reading was obtained at all.
	Query(deviceIndex int) (Readings, error)

	// DeviceCount returns the number of devices the source can query
	DeviceCount() (int, error)

	// DeviceName returns a human-readable name for the device
	DeviceName(deviceIndex int) (string, error)

	// Close releases the underlying driver resources
	Close() error
}
