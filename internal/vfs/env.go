package vfs

import (
	"os"

	"github.com/aalhour/raftio/internal/logging"
)

// Env binds the primitives to a filesystem and a logger. It carries no
// mutable state and is safe for concurrent use as long as its FS and Logger
// are.
type Env struct {
	fs     FS
	logger logging.Logger
}

// NewEnv returns an Env over fs. A nil fs selects Default(); a nil logger
// selects a WARN-level stderr logger.
func NewEnv(fs FS, logger logging.Logger) *Env {
	if fs == nil {
		fs = Default()
	}
	return &Env{fs: fs, logger: logging.OrDefault(logger)}
}

// DefaultEnv returns an Env over the OS filesystem that logs nothing.
func DefaultEnv() *Env {
	return NewEnv(Default(), logging.Discard)
}

// FS returns the filesystem the Env operates on.
func (e *Env) FS() FS {
	return e.fs
}

// Logger returns the Env's logger.
func (e *Env) Logger() logging.Logger {
	return e.logger
}

// Open opens path with the given os.O_* flags and permission bits.
func (e *Env) Open(path string, flag int, perm os.FileMode) (File, error) {
	return e.fs.Open(path, flag, perm)
}

// Close closes f.
func (e *Env) Close(f File) error {
	return f.Close()
}

// Unlink removes path.
func (e *Env) Unlink(path string) error {
	return e.fs.Remove(path)
}
