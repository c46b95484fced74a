//go:build linux

package vfs

import (
	"errors"

	"golang.org/x/sys/unix"
)

// directIOSupported indicates whether this platform has a direct I/O mode.
const directIOSupported = true

// SetDirectIO switches an open descriptor to O_DIRECT, bypassing the page
// cache. Alignment of buffers, lengths and offsets is the caller's business;
// the required block size comes from ProbeIOCapabilities.
//
// Filesystems without direct I/O support reject the flag with EINVAL, which
// is reported as UnsupportedCapability.
func SetDirectIO(f File) error {
	fd := int(f.Fd())
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return wrapErr("fcntl F_GETFL", f.Name(), err)
	}
	if flags&unix.O_DIRECT != 0 {
		return nil
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_DIRECT); err != nil {
		if errors.Is(err, unix.EINVAL) {
			return newError(UnsupportedCapability, "fcntl O_DIRECT", f.Name(), err)
		}
		return wrapErr("fcntl O_DIRECT", f.Name(), err)
	}
	return nil
}
