package vfs

import (
	"fmt"
	"os"

	"github.com/aalhour/raftio/internal/logging"
	"github.com/aalhour/raftio/internal/testutil"
)

// FilePerm is the permission of files created by MakeFile and NewWriter.
const FilePerm = 0600

// OpenFile opens name in dir with the given os.O_* flags. New files get
// FilePerm.
func (e *Env) OpenFile(dir Dir, name Filename, flag int) (File, error) {
	return e.fs.Open(Join(dir, name), flag, FilePerm)
}

// StatFile returns metadata for name in dir without opening it.
func (e *Env) StatFile(dir Dir, name Filename) (os.FileInfo, error) {
	return e.fs.Stat(Join(dir, name))
}

// MakeFile creates name in dir, which must not exist yet, writes bufs to it
// in order and flushes the data to stable storage.
//
// On any failure after the file was created, the file is closed and removed
// before the error is returned, so a half-written file is never left behind.
// The new directory entry is not durable until SyncDir(dir).
func (e *Env) MakeFile(dir Dir, name Filename, bufs [][]byte) error {
	path := Join(dir, name)
	f, err := e.fs.Open(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FilePerm)
	if err != nil {
		return err
	}
	testutil.MaybeKill(testutil.KPMakeFileAfterCreate)

	fail := func(err error) error {
		_ = f.Close()
		if rmErr := e.fs.Remove(path); rmErr != nil {
			e.logger.Warnf("%sremove partial file %s: %v", logging.NSFS, path, rmErr)
		}
		return err
	}

	for _, buf := range bufs {
		if err := WriteFully(f, buf); err != nil {
			return fail(err)
		}
	}
	testutil.MaybeKill(testutil.KPMakeFileAfterWrite)

	if err := f.Sync(); err != nil {
		return fail(err)
	}
	testutil.MaybeKill(testutil.KPMakeFileAfterSync)

	if err := f.Close(); err != nil {
		if rmErr := e.fs.Remove(path); rmErr != nil {
			e.logger.Warnf("%sremove partial file %s: %v", logging.NSFS, path, rmErr)
		}
		return err
	}
	return nil
}

// TruncateFile sets the size of name in dir to exactly offset bytes and
// flushes the change. Growing a file fills the new range with zeros.
func (e *Env) TruncateFile(dir Dir, name Filename, offset int64) error {
	path := Join(dir, name)
	if offset < 0 {
		return newError(InvalidArgument, "truncate", path, fmt.Errorf("negative size %d", offset))
	}
	f, err := e.fs.Open(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Truncate(offset); err != nil {
		_ = f.Close()
		return err
	}
	testutil.MaybeKill(testutil.KPTruncateAfterResize)
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// RenameFile atomically renames from to to within dir. An existing to is
// replaced.
func (e *Env) RenameFile(dir Dir, from, to Filename) error {
	return e.fs.Rename(Join(dir, from), Join(dir, to))
}

// UnlinkFile removes name from dir.
func (e *Env) UnlinkFile(dir Dir, name Filename) error {
	return e.fs.Remove(Join(dir, name))
}

// TryUnlinkFile is UnlinkFile for best-effort cleanup paths: the outcome is
// discarded.
func (e *Env) TryUnlinkFile(dir Dir, name Filename) {
	if err := e.UnlinkFile(dir, name); err != nil {
		e.logger.Debugf("%signored unlink failure: %v", logging.NSFS, err)
	}
}

// IsEmptyFile reports whether name in dir has size zero.
func (e *Env) IsEmptyFile(dir Dir, name Filename) (bool, error) {
	info, err := e.StatFile(dir, name)
	if err != nil {
		return false, err
	}
	return info.Size() == 0, nil
}
