//go:build !linux

package pthash

// warmMapping is a no-op on non-Linux platforms.
func warmMapping(data []byte) {
	// No-op
}
