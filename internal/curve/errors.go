package curve

import "codeberg.org/mutker/nvidiamon/internal/errors"

const (
	// Validation Errors
	ErrInvalidPoints = errors.ErrorCode("curve_invalid_points")
	ErrInvalidConfig = errors.ErrorCode("curve_invalid_config")

	// Profile Errors
	ErrProfileNotFound   = errors.ErrorCode("curve_profile_not_found")
	ErrProfileLoadFailed = errors.ErrorCode("curve_profile_load_failed")
	ErrWatchFailed       = errors.ErrorCode("curve_watch_failed")
)
