package fitconv

import "errors"

// Fatal conversion errors. Anything else the pipeline hits (missing optional
// fields, out-of-range values, individual unresolvable sample timestamps)
// degrades gracefully and is only logged.
var (
	// ErrNoDataPoints means the input carried zero samples.
	ErrNoDataPoints = errors.New("zero data points")

	// ErrNoTimestamps means no sample timestamp could be resolved, so no
	// Record message could ever be written.
	ErrNoTimestamps = errors.New("no resolvable record timestamps")

	// ErrInvalidStartTime means the activity start time could not be
	// converted to Unix milliseconds.
	ErrInvalidStartTime = errors.New("invalid start time")

	// ErrSerialization wraps encoder or filesystem failures. No partial
	// file remains on disk when this is returned.
	ErrSerialization = errors.New("fit serialization failed")
)
