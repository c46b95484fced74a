//go:build linux

package vfs

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/aalhour/raftio/internal/logging"
)

// zfsMagic is the statfs type of ZFS, which accepts O_DIRECT without
// honoring it.
const zfsMagic = 0x2fc12fc1

const (
	aioSetupAttempts = 3
	aioSetupBackoff  = 10 * time.Millisecond
)

func (e *Env) probeFile(f File) (Capabilities, error) {
	if err := reserveProbeSpace(f); err != nil {
		return Capabilities{}, err
	}
	size, err := probeDirectIO(f)
	if err != nil {
		return Capabilities{}, err
	}
	caps := Capabilities{DirectIOBlockSize: size}
	if size == 0 || !aioSupported {
		return caps, nil
	}
	caps.AsyncIO, err = e.probeAsyncIO(f, size)
	if err != nil {
		return Capabilities{}, err
	}
	return caps, nil
}

// reserveProbeSpace gives the probe file probeBlockSize bytes of backing
// storage, falling back to a sparse extension where fallocate is missing.
func reserveProbeSpace(f File) error {
	err := unix.Fallocate(int(f.Fd()), 0, 0, probeBlockSize)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS) {
		return f.Truncate(probeBlockSize)
	}
	return wrapErr("fallocate", f.Name(), err)
}

// probeDirectIO switches f to direct I/O and returns the largest block size
// a direct write accepts, or 0 if direct I/O is not available.
func probeDirectIO(f File) (int, error) {
	var st unix.Statfs_t
	if err := unix.Fstatfs(int(f.Fd()), &st); err != nil {
		return 0, wrapErr("fstatfs", f.Name(), err)
	}
	switch uint32(st.Type) {
	case unix.TMPFS_MAGIC, zfsMagic:
		return 0, nil
	}

	if err := SetDirectIO(f); err != nil {
		if KindOf(err) == UnsupportedCapability {
			return 0, nil
		}
		return 0, err
	}

	for _, size := range probeBlockSizes {
		buf := NewAlignedBuffer(size, size)
		_, err := unix.Pwrite(int(f.Fd()), buf.Bytes(), 0)
		if err == nil {
			return size, nil
		}
		if !errors.Is(err, unix.EINVAL) {
			return 0, newError(IOFailure, "pwrite", f.Name(), err)
		}
	}
	return 0, nil
}

// probeAsyncIO submits one non-blocking durable write and reports whether
// the kernel completed it asynchronously.
func (e *Env) probeAsyncIO(f File, blockSize int) (bool, error) {
	ctx, err := e.setupProbeAIO(f.Name())
	if err != nil {
		return false, err
	}
	if ctx == nil {
		return false, nil
	}
	defer ctx.TryDestroy()

	buf := NewAlignedBuffer(blockSize, blockSize)
	cb := &ControlBlock{
		Op:      OpPwrite,
		Fd:      f.Fd(),
		Buf:     buf.Bytes(),
		RWFlags: RWFNoWait | RWFDSync,
	}
	n, err := ctx.Submit([]*ControlBlock{cb})
	if err != nil {
		switch KindOf(err) {
		case UnsupportedCapability, InvalidArgument:
			e.logger.Debugf("%sprobe io_submit: %v", logging.NSAIO, err)
			return false, nil
		}
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	events, err := ctx.GetEvents(1, 1, NoTimeout)
	if err != nil {
		return false, err
	}
	ev := events[0]
	switch {
	case ev.Res == -int64(unix.EAGAIN), ev.Res == -int64(unix.EOPNOTSUPP):
		return false, nil
	case ev.Res < 0:
		return false, ev.Err()
	}
	return ev.N() == blockSize, nil
}

// setupProbeAIO returns a one-slot context, or nil if kernel AIO is
// unavailable. io_setup failing with EAGAIN means the system-wide request
// limit is momentarily exhausted; it is retried a few times before the probe
// settles for no async I/O.
func (e *Env) setupProbeAIO(path string) (*AIOContext, error) {
	backoff := aioSetupBackoff
	for attempt := 1; ; attempt++ {
		ctx, err := NewAIOContext(1)
		switch {
		case err == nil:
			return ctx, nil
		case KindOf(err) == UnsupportedCapability, KindOf(err) == InvalidArgument:
			return nil, nil
		case !errors.Is(err, unix.EAGAIN):
			return nil, err
		case attempt == aioSetupAttempts:
			e.logger.Warnf("%s%s: io_setup still at the system AIO limit after %d attempts, assuming no async I/O",
				logging.NSAIO, path, attempt)
			return nil, nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
}
