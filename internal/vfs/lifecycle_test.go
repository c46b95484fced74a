package vfs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalhour/raftio/internal/logging"
)

func readAll(t *testing.T, env *Env, dir Dir, name Filename) []byte {
	t.Helper()
	f, err := env.OpenFile(dir, name, os.O_RDONLY)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestMakeFile_RoundTrip(t *testing.T) {
	env := DefaultEnv()
	dir := MustDir(t.TempDir())
	name := MustFilename("seg-0")
	bufs := [][]byte{[]byte("hello "), nil, []byte("raft "), bytes.Repeat([]byte{0xAB}, 10000)}

	require.NoError(t, env.MakeFile(dir, name, bufs))

	want := bytes.Join(bufs, nil)
	f, err := env.OpenFile(dir, name, os.O_RDONLY)
	require.NoError(t, err)
	defer f.Close()
	got := make([]byte, len(want))
	require.NoError(t, ReadFully(f, got))
	assert.Equal(t, want, got)
	assert.True(t, IsAtEOF(f))

	info, err := env.StatFile(dir, name)
	require.NoError(t, err)
	assert.EqualValues(t, len(want), info.Size())
	assert.Equal(t, os.FileMode(FilePerm), info.Mode().Perm())
}

func TestMakeFile_Exists(t *testing.T) {
	env := DefaultEnv()
	dir := MustDir(t.TempDir())
	name := MustFilename("seg-0")
	require.NoError(t, env.MakeFile(dir, name, [][]byte{[]byte("first")}))

	err := env.MakeFile(dir, name, [][]byte{[]byte("second")})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, "first", string(readAll(t, env, dir, name)))
}

func TestMakeFile_RemovesFileOnWriteFailure(t *testing.T) {
	ffs := NewFaultInjectionFS(Default())
	env := NewEnv(ffs, logging.Discard)
	dir := MustDir(t.TempDir())
	name := MustFilename("seg-0")

	ffs.InjectWriteError("")
	err := env.MakeFile(dir, name, [][]byte{[]byte("data")})
	assert.ErrorIs(t, err, ErrInjectedWriteError)

	_, err = env.StatFile(dir, name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMakeFile_RemovesFileOnSyncFailure(t *testing.T) {
	ffs := NewFaultInjectionFS(Default())
	env := NewEnv(ffs, logging.Discard)
	dir := MustDir(t.TempDir())
	name := MustFilename("seg-0")

	ffs.InjectSyncError(Join(dir, name))
	err := env.MakeFile(dir, name, [][]byte{[]byte("data")})
	assert.ErrorIs(t, err, ErrInjectedSyncError)

	_, err = env.StatFile(dir, name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMakeFile_LogsFailedCleanup(t *testing.T) {
	ffs := NewFaultInjectionFS(Default())
	var out bytes.Buffer
	env := NewEnv(ffs, logging.NewLogger(&out, logging.LevelWarn))
	dir := MustDir(t.TempDir())
	name := MustFilename("seg-0")

	ffs.InjectSyncError("")
	ffs.InjectRemoveError(Join(dir, name))
	err := env.MakeFile(dir, name, [][]byte{[]byte("data")})
	assert.ErrorIs(t, err, ErrInjectedSyncError)
	assert.Contains(t, out.String(), "WARN [fs] remove partial file")
}

func TestMakeFile_ShortWritesAreRetried(t *testing.T) {
	ffs := NewFaultInjectionFS(Default())
	env := NewEnv(ffs, logging.Discard)
	dir := MustDir(t.TempDir())
	name := MustFilename("seg-0")
	content := []byte(strings.Repeat("0123456789", 50))

	ffs.SetMaxBytesPerCall(7)
	require.NoError(t, env.MakeFile(dir, name, [][]byte{content}))
	ffs.ClearErrors()

	assert.Equal(t, content, readAll(t, env, dir, name))
}

func TestMakeFile_SurvivesDroppedUnsyncedData(t *testing.T) {
	ffs := NewFaultInjectionFS(Default())
	env := NewEnv(ffs, logging.Discard)
	dir := MustDir(t.TempDir())
	name := MustFilename("seg-0")

	require.NoError(t, env.MakeFile(dir, name, [][]byte{[]byte("durable")}))
	synced, size, ok := ffs.GetFileState(Join(dir, name))
	require.True(t, ok)
	assert.EqualValues(t, 7, synced)
	assert.EqualValues(t, 7, size)

	require.NoError(t, ffs.DropUnsyncedData())
	assert.Equal(t, "durable", string(readAll(t, env, dir, name)))
}

func TestMakeFile_ZeroLengthThenOneByte(t *testing.T) {
	env := DefaultEnv()
	dir := MustDir(t.TempDir())
	name := MustFilename("seg-0")

	require.NoError(t, env.MakeFile(dir, name, nil))
	empty, err := env.IsEmptyFile(dir, name)
	require.NoError(t, err)
	assert.True(t, empty)

	f, err := env.OpenFile(dir, name, os.O_WRONLY)
	require.NoError(t, err)
	require.NoError(t, WriteFully(f, []byte{1}))
	require.NoError(t, f.Close())

	empty, err = env.IsEmptyFile(dir, name)
	require.NoError(t, err)
	assert.False(t, empty)
}

func TestIsEmptyFile_Missing(t *testing.T) {
	_, err := DefaultEnv().IsEmptyFile(MustDir(t.TempDir()), MustFilename("nope"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTruncateFile_Shrink(t *testing.T) {
	env := DefaultEnv()
	dir := MustDir(t.TempDir())
	name := MustFilename("seg-0")
	require.NoError(t, env.MakeFile(dir, name, [][]byte{[]byte("ABCDEFGHIJ")}))

	require.NoError(t, env.TruncateFile(dir, name, 4))

	f, err := env.OpenFile(dir, name, os.O_RDONLY)
	require.NoError(t, err)
	defer f.Close()
	buf := make([]byte, 4)
	require.NoError(t, ReadFully(f, buf))
	assert.Equal(t, "ABCD", string(buf))
	assert.True(t, IsAtEOF(f))

	err = ReadFully(f, make([]byte, 1))
	assert.ErrorIs(t, err, ErrShortTransfer)
}

func TestTruncateFile_Errors(t *testing.T) {
	env := DefaultEnv()
	dir := MustDir(t.TempDir())

	assert.ErrorIs(t, env.TruncateFile(dir, MustFilename("missing"), 0), ErrNotFound)

	require.NoError(t, env.MakeFile(dir, MustFilename("seg-0"), nil))
	assert.ErrorIs(t, env.TruncateFile(dir, MustFilename("seg-0"), -1), ErrInvalidArgument)
}

func TestRenameFile(t *testing.T) {
	env := DefaultEnv()
	dir := MustDir(t.TempDir())
	a, b := MustFilename("open-1"), MustFilename("1-10")
	require.NoError(t, env.MakeFile(dir, a, [][]byte{[]byte("entries")}))

	require.NoError(t, env.RenameFile(dir, a, b))

	_, err := env.StatFile(dir, a)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "entries", string(readAll(t, env, dir, b)))
}

func TestRenameFile_ReplacesTarget(t *testing.T) {
	env := DefaultEnv()
	dir := MustDir(t.TempDir())
	a, b := MustFilename("a"), MustFilename("b")
	require.NoError(t, env.MakeFile(dir, a, [][]byte{[]byte("new")}))
	require.NoError(t, env.MakeFile(dir, b, [][]byte{[]byte("old")}))

	require.NoError(t, env.RenameFile(dir, a, b))
	assert.Equal(t, "new", string(readAll(t, env, dir, b)))
}

func TestUnlinkFile(t *testing.T) {
	var out bytes.Buffer
	env := NewEnv(Default(), logging.NewLogger(&out, logging.LevelDebug))
	dir := MustDir(t.TempDir())
	name := MustFilename("seg-0")
	require.NoError(t, env.MakeFile(dir, name, nil))

	require.NoError(t, env.UnlinkFile(dir, name))
	assert.ErrorIs(t, env.UnlinkFile(dir, name), ErrNotFound)

	env.TryUnlinkFile(dir, name)
	assert.Contains(t, out.String(), "DEBUG [fs] ignored unlink failure")
}

func TestScenario_MakeTruncateInspect(t *testing.T) {
	env := DefaultEnv()
	dir := MustDir(filepath.Join(t.TempDir(), "x"))
	name := MustFilename("seg-0")

	require.NoError(t, env.EnsureDir(dir))
	require.NoError(t, env.MakeFile(dir, name, [][]byte{[]byte("ABCDEFGH")}))

	info, err := env.StatFile(dir, name)
	require.NoError(t, err)
	assert.EqualValues(t, 8, info.Size())

	zerosFrom := func(off int64) bool {
		t.Helper()
		f, err := env.OpenFile(dir, name, os.O_RDONLY)
		require.NoError(t, err)
		defer f.Close()
		_, err = f.Seek(off, io.SeekStart)
		require.NoError(t, err)
		ok, err := IsFilledWithTrailingZeros(f)
		require.NoError(t, err)
		return ok
	}

	assert.True(t, zerosFrom(8))

	require.NoError(t, env.TruncateFile(dir, name, 16))
	assert.True(t, zerosFrom(8))

	f, err := env.OpenFile(dir, name, os.O_WRONLY)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0x01}, 12)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.False(t, zerosFrom(8))
}
