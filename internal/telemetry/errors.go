package telemetry

import "codeberg.org/mutker/nvidiamon/internal/errors"

const (
	// Query Errors
	ErrQueryFailed    = errors.ErrorCode("telemetry_query_failed")
	ErrDeviceNotFound = errors.ErrorCode("telemetry_device_not_found")
	ErrNoDevices      = errors.ErrorCode("telemetry_no_devices")
)
