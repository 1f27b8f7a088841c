package monitor

import "codeberg.org/mutker/nvidiamon/internal/errors"

const (
	ErrAlreadyStarted  = errors.ErrorCode("monitor_already_started")
	ErrShutdownTimeout = errors.ErrorCode("monitor_shutdown_timeout")
)
