package vfs

import (
	"os"
	"syscall"

	"github.com/aalhour/raftio/internal/logging"
)

// DirPerm is the permission used when EnsureDir creates a directory.
const DirPerm = 0755

// EnsureDir checks that dir exists and is a directory, creating it if it is
// missing. Only the last component is created: a missing parent is reported
// as NotFound.
func (e *Env) EnsureDir(dir Dir) error {
	path := dir.String()
	info, err := e.fs.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return newError(IOFailure, "ensure dir", path, syscall.ENOTDIR)
		}
		return nil
	case KindOf(err) != NotFound:
		return err
	}

	err = e.fs.Mkdir(path, DirPerm)
	if err == nil {
		e.logger.Debugf("%screated directory %s", logging.NSFS, path)
		return nil
	}
	if KindOf(err) != AlreadyExists {
		return err
	}

	// Lost a race with another creator; accept it only if it is a directory.
	info, err = e.fs.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return newError(IOFailure, "ensure dir", path, syscall.ENOTDIR)
	}
	return nil
}

// SyncDir flushes dir's metadata (entries created, renamed or removed in it)
// to stable storage.
func (e *Env) SyncDir(dir Dir) error {
	path := dir.String()
	d, err := e.fs.Open(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	syncErr := d.Sync()
	closeErr := d.Close()
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}
