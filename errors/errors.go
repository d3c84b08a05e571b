// Package errors defines all exported error sentinels for the pthash library.
//
// This is the single source of truth for error values. Both the top-level
// pthash package and internal algorithm packages import from here,
// ensuring errors.Is checks work across package boundaries.
package errors

import "errors"

// Configuration errors, detected before any work starts.
var (
	ErrInvalidConfig = errors.New("pthash: invalid build configuration")
	ErrEmptyKeySet   = errors.New("pthash: cannot build a function over zero keys")
)

// Construction errors.
var (
	ErrDuplicateKeys     = errors.New("pthash: duplicate keys detected (identical 128-bit hash)")
	ErrSeedsExhausted    = errors.New("pthash: pilot search failed for all attempted seeds")
	ErrResourceExhausted = errors.New("pthash: construction exceeded its memory or scratch-storage budget")
)

// Serialization errors. A corrupt or mismatched blob is never silently
// coerced; Load fails with one of these.
var (
	ErrInvalidMagic   = errors.New("pthash: invalid magic number")
	ErrInvalidVersion = errors.New("pthash: unsupported format version")
	ErrChecksumFailed = errors.New("pthash: blob checksum verification failed")
	ErrTruncatedBlob  = errors.New("pthash: serialized blob is truncated")
	ErrCorrupted      = errors.New("pthash: serialized data is corrupted")
)
