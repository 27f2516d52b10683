package series

import "errors"

var (
	// ErrInvalidGranularity indicates an unsupported granularity.
	ErrInvalidGranularity = errors.New("series: invalid granularity")
)
