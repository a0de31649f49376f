package aicache

import "errors"

var (
	// ErrInvalidOperation is returned when build_key is called with an
	// operation name that isn't identifier-shaped.
	ErrInvalidOperation = errors.New("aicache: invalid operation name")

	// ErrInvalidText is returned when text given to BuildKey is empty,
	// is not valid UTF-8, or exceeds the validator's MaxTextLength.
	ErrInvalidText = errors.New("aicache: text must be non-empty valid UTF-8 within the maximum length")

	ErrCacheMiss           = errors.New("aicache: cache miss")
	ErrSerializationFailed = errors.New("aicache: serialization failed")
)
