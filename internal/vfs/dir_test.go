package vfs

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesAndIsIdempotent(t *testing.T) {
	env := DefaultEnv()
	path := filepath.Join(t.TempDir(), "x")
	dir := MustDir(path)

	require.NoError(t, env.EnsureDir(dir))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, env.EnsureDir(dir))
	again, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())
}

func TestEnsureDir_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	err := DefaultEnv().EnsureDir(MustDir(path))
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.ErrorIs(t, err, syscall.ENOTDIR)
}

func TestEnsureDir_MissingParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "child")
	err := DefaultEnv().EnsureDir(MustDir(path))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncDir(t *testing.T) {
	env := DefaultEnv()
	dir := MustDir(t.TempDir())
	require.NoError(t, env.MakeFile(dir, MustFilename("seg-0"), [][]byte{[]byte("x")}))
	require.NoError(t, env.SyncDir(dir))

	err := env.SyncDir(MustDir(filepath.Join(dir.String(), "missing")))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncDir_FaultInjection(t *testing.T) {
	ffs := NewFaultInjectionFS(Default())
	env := NewEnv(ffs, nil)
	dir := MustDir(t.TempDir())

	ffs.InjectSyncError(dir.String())
	err := env.SyncDir(dir)
	assert.ErrorIs(t, err, ErrInjectedSyncError)
}
