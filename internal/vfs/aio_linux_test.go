//go:build linux && (386 || amd64 || arm || arm64 || mips64le || mipsle || ppc64le)

package vfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAIOContext(t *testing.T, size int) *AIOContext {
	t.Helper()
	ctx, err := NewAIOContext(size)
	if err != nil {
		t.Skipf("kernel AIO unavailable: %v", err)
	}
	t.Cleanup(ctx.TryDestroy)
	return ctx
}

func openAIOTestFile(t *testing.T) File {
	t.Helper()
	f, err := Default().Open(filepath.Join(t.TempDir(), "aio"), os.O_RDWR|os.O_CREATE, 0600)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func writeBlock(f File, i int, fill byte) *ControlBlock {
	buf := make([]byte, 512)
	for j := range buf {
		buf[j] = fill
	}
	return &ControlBlock{Op: OpPwrite, Fd: f.Fd(), Buf: buf, Offset: int64(i) * 512, Data: uint64(100 + i)}
}

func TestNewAIOContext_InvalidSize(t *testing.T) {
	_, err := NewAIOContext(0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAIOContext_SubmitClampsToCapacity(t *testing.T) {
	ctx := newTestAIOContext(t, 2)
	f := openAIOTestFile(t)
	blocks := []*ControlBlock{writeBlock(f, 0, 'a'), writeBlock(f, 1, 'b'), writeBlock(f, 2, 'c')}

	n, err := ctx.Submit(blocks)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, ctx.Inflight())

	n, err = ctx.Submit(blocks[2:])
	require.NoError(t, err)
	assert.Equal(t, 0, n, "full context accepts nothing")

	events := reapAll(t, ctx, 2)
	seen := map[uint64]bool{}
	for _, ev := range events {
		require.NoError(t, ev.Err())
		assert.Equal(t, 512, ev.N())
		require.NotNil(t, ev.Block)
		assert.Equal(t, ev.Data, ev.Block.Data)
		seen[ev.Data] = true
	}
	assert.Equal(t, map[uint64]bool{100: true, 101: true}, seen)
	assert.Equal(t, 0, ctx.Inflight())

	n, err = ctx.Submit(blocks[2:])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	events = reapAll(t, ctx, 1)
	assert.EqualValues(t, 102, events[0].Data)

	got := make([]byte, 3*512)
	_, err = f.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, byte('a'), got[0])
	assert.Equal(t, byte('b'), got[512])
	assert.Equal(t, byte('c'), got[1024])
}

func reapAll(t *testing.T, ctx *AIOContext, n int) []Event {
	t.Helper()
	var events []Event
	for len(events) < n {
		evs, err := ctx.GetEvents(1, n-len(events), 5*time.Second)
		require.NoError(t, err)
		require.NotEmpty(t, evs, "timed out waiting for completions")
		events = append(events, evs...)
	}
	return events
}

func TestAIOContext_ReadAndFsync(t *testing.T) {
	ctx := newTestAIOContext(t, 4)
	f := openAIOTestFile(t)
	_, err := f.WriteAt([]byte("kernel aio"), 0)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := ctx.Submit([]*ControlBlock{
		{Op: OpPread, Fd: f.Fd(), Buf: buf, Data: 1},
		{Op: OpFdsync, Fd: f.Fd(), Data: 2},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, ev := range reapAll(t, ctx, 2) {
		if ev.Data == 2 && ev.Err() != nil {
			// Some filesystems do not implement fdsync through AIO.
			assert.ErrorIs(t, ev.Err(), ErrInvalidArgument)
			continue
		}
		require.NoError(t, ev.Err())
	}
	assert.Equal(t, "kernel aio", string(buf))
}

func TestAIOContext_GetEventsTimeout(t *testing.T) {
	ctx := newTestAIOContext(t, 1)

	start := time.Now()
	events, err := ctx.GetEvents(1, 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	events, err = ctx.GetEvents(0, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = ctx.GetEvents(2, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAIOContext_Destroy(t *testing.T) {
	ctx := newTestAIOContext(t, 1)
	f := openAIOTestFile(t)

	n, err := ctx.Submit([]*ControlBlock{writeBlock(f, 0, 'x')})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	assert.ErrorIs(t, ctx.Destroy(), ErrInvalidArgument, "in-flight requests must be drained first")

	reapAll(t, ctx, 1)
	require.NoError(t, ctx.Destroy())

	assert.ErrorIs(t, ctx.Destroy(), ErrInvalidArgument)
	_, err = ctx.Submit([]*ControlBlock{writeBlock(f, 0, 'y')})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ctx.GetEvents(0, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	ctx.TryDestroy()
}

func TestAIOContext_TryDestroyWithInflight(t *testing.T) {
	ctx, err := NewAIOContext(1)
	if err != nil {
		t.Skipf("kernel AIO unavailable: %v", err)
	}
	f := openAIOTestFile(t)
	n, err := ctx.Submit([]*ControlBlock{writeBlock(f, 0, 'z')})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	ctx.TryDestroy()
	assert.Equal(t, 0, ctx.Inflight())
}

func TestAIOContext_SubmitNilBlock(t *testing.T) {
	ctx := newTestAIOContext(t, 2)
	_, err := ctx.Submit([]*ControlBlock{nil})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 0, ctx.Inflight())
}

func TestAIOContext_ZeroValueRejected(t *testing.T) {
	var ctx AIOContext
	f := openAIOTestFile(t)

	_, err := ctx.Submit([]*ControlBlock{writeBlock(f, 0, 'x')})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorContains(t, err, "uninitialized")
	_, err = ctx.GetEvents(0, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, ctx.Destroy(), ErrInvalidArgument)
	ctx.TryDestroy()
	assert.Equal(t, 0, ctx.Inflight())
}
