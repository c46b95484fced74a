//go:build linux && (386 || amd64 || arm || arm64 || mips64le || mipsle || ppc64le)

package vfs

import (
	"errors"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// aioSupported indicates whether this build talks to the kernel AIO facility.
const aioSupported = true

// iocb mirrors struct iocb from linux/aio_abi.h (little-endian layout).
type iocb struct {
	data      uint64
	key       uint32
	rwFlags   int32
	opcode    uint16
	reqPrio   int16
	fildes    uint32
	buf       uint64
	nbytes    uint64
	offset    int64
	reserved2 uint64
	flags     uint32
	resfd     uint32
}

// ioEvent mirrors struct io_event.
type ioEvent struct {
	data uint64
	obj  uint64
	res  int64
	res2 int64
}

type pendingIO struct {
	block  *ControlBlock
	pinner runtime.Pinner
}

// AIOContext is a kernel asynchronous I/O context (io_setup) sized for a
// fixed number of in-flight requests.
//
// States: a zero AIOContext is uninitialized and rejects every operation,
// NewAIOContext returns a ready one, and Destroy or TryDestroy move it to
// destroyed.
// An AIOContext is not safe for concurrent use.
type AIOContext struct {
	ctx      uintptr
	max      int
	state    aioState
	nextKey  uint64
	inflight map[uint64]*pendingIO
}

// NewAIOContext creates a context for at most maxConcurrent in-flight
// requests.
func NewAIOContext(maxConcurrent int) (*AIOContext, error) {
	if maxConcurrent <= 0 {
		return nil, newError(InvalidArgument, "io_setup", "", fmt.Errorf("max concurrent %d", maxConcurrent))
	}
	var ctx uintptr
	_, _, errno := unix.Syscall(unix.SYS_IO_SETUP, uintptr(maxConcurrent), uintptr(unsafe.Pointer(&ctx)), 0)
	if errno != 0 {
		return nil, wrapErr("io_setup", "", errno)
	}
	return &AIOContext{
		ctx:      ctx,
		max:      maxConcurrent,
		state:    aioReady,
		inflight: make(map[uint64]*pendingIO),
	}, nil
}

// Max returns the number of concurrent requests the context was sized for.
func (c *AIOContext) Max() int {
	return c.max
}

// Inflight returns the number of submitted requests whose completion has not
// been returned by GetEvents yet.
func (c *AIOContext) Inflight() int {
	return len(c.inflight)
}

// Submit enqueues blocks in order and returns how many were accepted. At most
// Max()-Inflight() blocks are accepted per call; the caller resubmits the
// rest after reaping completions. A full queue, or a kernel short of
// resources, yields (0, nil).
func (c *AIOContext) Submit(blocks []*ControlBlock) (int, error) {
	if c.state != aioReady {
		return 0, errNotReady("io_submit", c.state)
	}
	n := min(len(blocks), c.max-len(c.inflight))
	if n <= 0 {
		return 0, nil
	}

	cbs := make([]iocb, n)
	ptrs := make([]*iocb, n)
	pending := make([]*pendingIO, n)
	keys := make([]uint64, n)
	for i, b := range blocks[:n] {
		if b == nil {
			for _, p := range pending[:i] {
				p.pinner.Unpin()
			}
			return 0, newError(InvalidArgument, "io_submit", "", fmt.Errorf("nil control block at %d", i))
		}
		p := &pendingIO{block: b}
		var bufAddr uint64
		if len(b.Buf) > 0 {
			p.pinner.Pin(&b.Buf[0])
			bufAddr = uint64(uintptr(unsafe.Pointer(&b.Buf[0])))
		}
		keys[i] = c.nextKey
		c.nextKey++
		cbs[i] = iocb{
			data:    keys[i],
			rwFlags: int32(b.RWFlags),
			opcode:  uint16(b.Op),
			fildes:  uint32(b.Fd),
			buf:     bufAddr,
			nbytes:  uint64(len(b.Buf)),
			offset:  b.Offset,
		}
		ptrs[i] = &cbs[i]
		pending[i] = p
	}

	got, err := ioSubmit(c.ctx, ptrs)
	runtime.KeepAlive(cbs)
	for i := range n {
		if i < got {
			c.inflight[keys[i]] = pending[i]
		} else {
			pending[i].pinner.Unpin()
		}
	}
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, nil
		}
		return 0, wrapErr("io_submit", "", err)
	}
	return got, nil
}

func ioSubmit(ctx uintptr, ptrs []*iocb) (int, error) {
	for {
		r, _, errno := unix.Syscall(unix.SYS_IO_SUBMIT, ctx, uintptr(len(ptrs)), uintptr(unsafe.Pointer(&ptrs[0])))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return 0, errno
		}
		return int(r), nil
	}
}

// GetEvents waits until at least minNr requests have completed, or timeout
// elapses, and returns up to maxNr completions. NoTimeout waits
// indefinitely. The timeout bounds the wait only: requests still running
// when it fires stay in flight.
func (c *AIOContext) GetEvents(minNr, maxNr int, timeout time.Duration) ([]Event, error) {
	if c.state != aioReady {
		return nil, errNotReady("io_getevents", c.state)
	}
	if minNr < 0 || maxNr <= 0 || minNr > maxNr {
		return nil, newError(InvalidArgument, "io_getevents", "", fmt.Errorf("min %d max %d", minNr, maxNr))
	}

	raw := make([]ioEvent, maxNr)
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		var ts *unix.Timespec
		if timeout >= 0 {
			t := unix.NsecToTimespec(max(time.Until(deadline), 0).Nanoseconds())
			ts = &t
		}
		r, _, errno := unix.Syscall6(unix.SYS_IO_GETEVENTS, c.ctx, uintptr(minNr), uintptr(maxNr),
			uintptr(unsafe.Pointer(&raw[0])), uintptr(unsafe.Pointer(ts)), 0)
		if errno == unix.EINTR {
			// Signals (including Go's preemption) interrupt the wait; resume it
			// with what is left of the timeout.
			continue
		}
		if errno != 0 {
			return nil, wrapErr("io_getevents", "", errno)
		}
		return c.reap(raw[:int(r)]), nil
	}
}

func (c *AIOContext) reap(raw []ioEvent) []Event {
	events := make([]Event, len(raw))
	for i, ev := range raw {
		events[i] = Event{Data: ev.data, Res: ev.res, Res2: ev.res2}
		p, ok := c.inflight[ev.data]
		if !ok {
			continue
		}
		delete(c.inflight, ev.data)
		p.pinner.Unpin()
		events[i].Data = p.block.Data
		events[i].Block = p.block
	}
	return events
}

// Destroy releases the kernel context. Requests must be drained first:
// destroying with requests in flight is refused with InvalidArgument.
func (c *AIOContext) Destroy() error {
	if c.state != aioReady {
		return errNotReady("io_destroy", c.state)
	}
	if n := len(c.inflight); n > 0 {
		return newError(InvalidArgument, "io_destroy", "", fmt.Errorf("%d requests in flight", n))
	}
	return c.destroy()
}

// TryDestroy releases the kernel context for best-effort teardown, ignoring
// errors. Unlike Destroy it does not refuse in-flight requests: io_destroy
// waits for them before returning, after which their buffers are released.
func (c *AIOContext) TryDestroy() {
	if c == nil || c.state != aioReady {
		return
	}
	_ = c.destroy()
}

func (c *AIOContext) destroy() error {
	c.state = aioDestroyed
	_, _, errno := unix.Syscall(unix.SYS_IO_DESTROY, c.ctx, 0, 0)
	for key, p := range c.inflight {
		p.pinner.Unpin()
		delete(c.inflight, key)
	}
	if errno != 0 {
		return wrapErr("io_destroy", "", errno)
	}
	return nil
}
