package quota

import "errors"

var (
	// ErrInvalidConfig is returned when tier or override configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidKey is returned when the tracker key is empty
	ErrInvalidKey = errors.New("tracker key cannot be empty")

	// ErrStoreFailed is returned by stores when the evaluation cannot be executed
	ErrStoreFailed = errors.New("store evaluation failed")
)
