package vfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ncw/directio"

	"github.com/aalhour/raftio/internal/logging"
	"github.com/aalhour/raftio/internal/testutil"
)

// WriteMode identifies the mechanism a Writer uses.
type WriteMode int

const (
	// WriteBuffered writes through the page cache and flushes with fdatasync.
	WriteBuffered WriteMode = iota
	// WriteAsync submits durable direct writes to a kernel AIO context.
	WriteAsync
)

func (m WriteMode) String() string {
	switch m {
	case WriteBuffered:
		return "buffered"
	case WriteAsync:
		return "async"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// DefaultMaxInflight is the AIO context size used when WriterOptions leaves
// MaxInflight at zero.
const DefaultMaxInflight = 4

// writerPollInterval bounds how long an async wait goes without checking
// its context.
const writerPollInterval = 50 * time.Millisecond

// WriterOptions configures NewWriter.
type WriterOptions struct {
	// MaxInflight is the number of async writes that may be pending at once.
	// Writes abandoned by a cancelled context stay pending until they
	// complete, so this bounds how many cancellations can pile up.
	MaxInflight int
}

// Writer writes to a single file. Data is durable when Write returns
// without error.
//
// Both modes accept the same calls and leave the same bytes on disk, so
// callers choose nothing about the mechanism beyond passing the directory's
// Capabilities to NewWriter. A Writer serializes its own calls.
type Writer interface {
	// Write writes bufs back to back starting at offset and returns the
	// number of bytes taken from bufs.
	//
	// offset must be a multiple of BlockSize, and the written range is padded
	// with zeros to the next block boundary. A ctx already done fails the call
	// before anything is written. Cancelling ctx later stops the wait, not the
	// write: the write may still land, and Close waits for it.
	Write(ctx context.Context, bufs [][]byte, offset int64) (int, error)

	// BlockSize returns the alignment of offsets and written ranges.
	BlockSize() int

	// Mode reports the mechanism in use.
	Mode() WriteMode

	// Close waits for pending writes and closes the file.
	Close() error
}

// NewWriter opens name in dir for writing, creating it if needed, and
// returns the Writer best suited to caps: the async writer when the probe
// found working kernel AIO, the buffered writer otherwise. The block size is
// the probed direct I/O block size, or DefaultBlockSize without direct I/O.
func (e *Env) NewWriter(dir Dir, name Filename, caps Capabilities, opts WriterOptions) (Writer, error) {
	if opts.MaxInflight < 0 {
		return nil, newError(InvalidArgument, "new writer", Join(dir, name),
			fmt.Errorf("max inflight %d", opts.MaxInflight))
	}
	if opts.MaxInflight == 0 {
		opts.MaxInflight = DefaultMaxInflight
	}

	blockSize := DefaultBlockSize
	if caps.Direct() {
		blockSize = caps.DirectIOBlockSize
	}

	f, err := e.OpenFile(dir, name, os.O_WRONLY|os.O_CREATE)
	if err != nil {
		return nil, err
	}

	if caps.AsyncIO && caps.Direct() {
		w, err := e.newAsyncWriter(f, blockSize, opts)
		if err == nil {
			e.logger.Debugf("%s%s: async, block size %d", logging.NSWriter, f.Name(), caps.DirectIOBlockSize)
			return w, nil
		}
		if KindOf(err) != UnsupportedCapability {
			_ = f.Close()
			return nil, err
		}
		e.logger.Warnf("%s%s: async writes unavailable, using buffered writes: %v", logging.NSWriter, f.Name(), err)
	}
	e.logger.Debugf("%s%s: buffered, block size %d", logging.NSWriter, f.Name(), blockSize)
	return &bufferedWriter{f: f, blockSize: blockSize}, nil
}

// checkWriteOffset rejects offsets a Writer with blockSize cannot take.
func checkWriteOffset(f File, offset int64, blockSize int) error {
	if offset < 0 || offset%int64(blockSize) != 0 {
		return newError(InvalidArgument, "write", f.Name(),
			fmt.Errorf("offset %d not aligned to %d", offset, blockSize))
	}
	return nil
}

// bufferedWriter writes through the page cache.
type bufferedWriter struct {
	mu        sync.Mutex
	f         File
	blockSize int
	closed    bool
}

func (w *bufferedWriter) Write(ctx context.Context, bufs [][]byte, offset int64) (int, error) {
	if err := checkWriteOffset(w.f, offset, w.blockSize); err != nil {
		return 0, err
	}
	buf := Gather(bufs, w.blockSize)
	if buf.Len() == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, newError(InvalidArgument, "write", w.f.Name(), os.ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := WriteFully(io.NewOffsetWriter(w.f, offset), buf.Padded()); err != nil {
		return 0, err
	}
	if err := w.f.Datasync(); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

func (w *bufferedWriter) BlockSize() int {
	return w.blockSize
}

func (w *bufferedWriter) Mode() WriteMode {
	return WriteBuffered
}

func (w *bufferedWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return w.f.Close()
}

// asyncWriter submits each Write as one RWF_DSYNC direct write and waits for
// its completion.
type asyncWriter struct {
	mu        sync.Mutex
	f         File
	aio       *AIOContext
	blockSize int
	logger    logging.Logger

	next   uint64
	closed bool

	// err is the first failure of a write whose caller stopped waiting. It is
	// reported by every later call.
	err error
}

func (e *Env) newAsyncWriter(f File, blockSize int, opts WriterOptions) (*asyncWriter, error) {
	aio, err := NewAIOContext(opts.MaxInflight)
	if err != nil {
		return nil, err
	}
	if err := SetDirectIO(f); err != nil {
		aio.TryDestroy()
		return nil, err
	}
	return &asyncWriter{
		f:         f,
		aio:       aio,
		blockSize: blockSize,
		logger:    e.logger,
	}, nil
}

func (w *asyncWriter) Write(ctx context.Context, bufs [][]byte, offset int64) (int, error) {
	if err := checkWriteOffset(w.f, offset, w.blockSize); err != nil {
		return 0, err
	}
	buf := Gather(bufs, w.blockSize)
	if buf.Len() == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, newError(InvalidArgument, "write", w.f.Name(), os.ErrClosed)
	}
	if w.err != nil {
		return 0, w.err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key := w.next
	w.next++
	cb := &ControlBlock{
		Op:      OpPwrite,
		Fd:      w.f.Fd(),
		Buf:     buf.Padded(),
		Offset:  offset,
		RWFlags: RWFDSync,
		Data:    key,
	}
	if !memAligned(cb.Buf) {
		return 0, newError(InvalidArgument, "write", w.f.Name(), fmt.Errorf("buffer not aligned to %d", directio.AlignSize))
	}
	if err := w.submit(ctx, cb); err != nil {
		return 0, err
	}
	testutil.MaybeKill(testutil.KPWriterAfterSubmit)

	ev, err := w.wait(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := ev.Err(); err != nil {
		return 0, err
	}
	if ev.N() != len(cb.Buf) {
		return 0, shortTransfer("write", w.f, ev.N(), len(cb.Buf))
	}
	return buf.Len(), nil
}

// submit retries until the context accepts cb. A zero count means the queue
// is full of abandoned writes, or the kernel is short of resources.
func (w *asyncWriter) submit(ctx context.Context, cb *ControlBlock) error {
	for {
		n, err := w.aio.Submit([]*ControlBlock{cb})
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.aio.Inflight() == 0 {
			time.Sleep(writerPollInterval)
			continue
		}
		events, err := w.aio.GetEvents(1, w.aio.Max(), writerPollInterval)
		if err != nil {
			return err
		}
		for _, ev := range events {
			w.settle(ev)
		}
	}
}

// wait reaps completions until the one carrying key arrives or ctx is done.
func (w *asyncWriter) wait(ctx context.Context, key uint64) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			w.logger.Warnf("%s%s: stopped waiting for write %d: %v", logging.NSWriter, w.f.Name(), key, err)
			return Event{}, err
		}
		events, err := w.aio.GetEvents(1, w.aio.Max(), writerPollInterval)
		if err != nil {
			return Event{}, err
		}
		var mine *Event
		for i := range events {
			if events[i].Data == key {
				mine = &events[i]
				continue
			}
			w.settle(events[i])
		}
		if mine != nil {
			return *mine, nil
		}
	}
}

// settle records the outcome of a write nobody waits for anymore.
func (w *asyncWriter) settle(ev Event) {
	err := ev.Err()
	if err == nil && ev.Block != nil && ev.N() != len(ev.Block.Buf) {
		err = shortTransfer("write", w.f, ev.N(), len(ev.Block.Buf))
	}
	if err == nil {
		return
	}
	w.logger.Errorf("%s%s: abandoned write %d failed: %v", logging.NSWriter, w.f.Name(), ev.Data, err)
	if w.err == nil {
		w.err = err
	}
}

func (w *asyncWriter) BlockSize() int {
	return w.blockSize
}

func (w *asyncWriter) Mode() WriteMode {
	return WriteAsync
}

func (w *asyncWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return newError(InvalidArgument, "close", w.f.Name(), os.ErrClosed)
	}
	w.closed = true

	var drainErr error
	for w.aio.Inflight() > 0 {
		events, err := w.aio.GetEvents(1, w.aio.Max(), NoTimeout)
		if err != nil {
			drainErr = err
			break
		}
		for _, ev := range events {
			w.settle(ev)
		}
	}

	var destroyErr error
	if drainErr != nil {
		w.aio.TryDestroy()
	} else {
		destroyErr = w.aio.Destroy()
	}
	closeErr := w.f.Close()

	for _, err := range []error{drainErr, w.err, destroyErr, closeErr} {
		if err != nil {
			return err
		}
	}
	return nil
}
