package engine

import "errors"

// Trade admission failures. Both are non-fatal: the signal is discarded and
// logged, and neither other pairs nor future bars are affected.
var (
	// ErrRiskLimitExceeded: the pair or the account already holds the
	// configured maximum of concurrent trades.
	ErrRiskLimitExceeded = errors.New("risk limit exceeded")

	// ErrInvalidSizing: the clamped position size is non-positive, e.g. a
	// zero stop distance.
	ErrInvalidSizing = errors.New("invalid position sizing")
)
