//go:build linux

package pthash

import "golang.org/x/sys/unix"

// warmMapping asks the kernel to read the mapped function file ahead,
// so parsing faults pages in bulk instead of one at a time.
// Best-effort: errors are silently ignored.
func warmMapping(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_WILLNEED)
}
