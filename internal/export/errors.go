package export

import "codeberg.org/mutker/nvidiamon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig

	// Connection Errors
	ErrConnectFailed    = errors.ErrorCode("export_connect_failed")
	ErrNotConnected     = errors.ErrorCode("export_not_connected")
	ErrDisconnectFailed = errors.ErrorCode("export_disconnect_failed")

	// Publish Errors
	ErrPublishFailed = errors.ErrorCode("export_publish_failed")
)
