//go:build darwin

package vfs

import (
	"golang.org/x/sys/unix"
)

// directIOSupported indicates whether this platform has a direct I/O mode.
const directIOSupported = true

// SetDirectIO disables page caching for an open descriptor.
//
// macOS has no O_DIRECT flag. F_NOCACHE via fcntl gives the equivalent
// behavior per descriptor.
func SetDirectIO(f File) error {
	if _, err := unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1); err != nil {
		return wrapErr("fcntl F_NOCACHE", f.Name(), err)
	}
	return nil
}
