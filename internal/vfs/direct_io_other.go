//go:build !linux && !darwin

package vfs

import "errors"

// directIOSupported indicates whether this platform has a direct I/O mode.
const directIOSupported = false

// SetDirectIO always fails with UnsupportedCapability on this platform.
func SetDirectIO(f File) error {
	return newError(UnsupportedCapability, "direct io", f.Name(), errors.ErrUnsupported)
}
