//go:build !linux || !(386 || amd64 || arm || arm64 || mips64le || mipsle || ppc64le)

package vfs

import (
	"errors"
	"time"
)

// aioSupported indicates whether this build talks to the kernel AIO facility.
const aioSupported = false

// AIOContext is unavailable on this platform; NewAIOContext always fails
// with UnsupportedCapability.
type AIOContext struct{}

// NewAIOContext always fails with UnsupportedCapability on this platform.
func NewAIOContext(maxConcurrent int) (*AIOContext, error) {
	return nil, newError(UnsupportedCapability, "io_setup", "", errors.ErrUnsupported)
}

// Max always returns 0.
func (c *AIOContext) Max() int { return 0 }

// Inflight always returns 0.
func (c *AIOContext) Inflight() int { return 0 }

// Submit always fails with UnsupportedCapability.
func (c *AIOContext) Submit(blocks []*ControlBlock) (int, error) {
	return 0, newError(UnsupportedCapability, "io_submit", "", errors.ErrUnsupported)
}

// GetEvents always fails with UnsupportedCapability.
func (c *AIOContext) GetEvents(minNr, maxNr int, timeout time.Duration) ([]Event, error) {
	return nil, newError(UnsupportedCapability, "io_getevents", "", errors.ErrUnsupported)
}

// Destroy always fails with UnsupportedCapability.
func (c *AIOContext) Destroy() error {
	return newError(UnsupportedCapability, "io_destroy", "", errors.ErrUnsupported)
}

// TryDestroy does nothing.
func (c *AIOContext) TryDestroy() {}
