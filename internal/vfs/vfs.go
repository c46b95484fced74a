// Package vfs provides the operating-system I/O primitives beneath a durable,
// crash-safe replicated log.
//
// The package gives the log layer a small set of strongly-contracted
// operations: create, read, write, truncate, rename and delete files; sync
// directories; detect pre-allocated (zero-filled) regions; probe whether a
// directory supports direct I/O and kernel asynchronous I/O; and drive either
// buffered or direct/asynchronous writes through a single Writer interface.
//
// The filesystem itself is reached through the FS interface so that tests can
// substitute a fault-injecting wrapper:
//   - Default() is the real OS filesystem used in production
//   - FaultInjectionFS injects failures and short transfers for tests
//
// Nothing in this package takes locks on behalf of the caller. A File or an
// AIOContext must not be used from two goroutines without external
// serialization.
package vfs

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

// FS is the filesystem namespace the primitives operate on.
type FS interface {
	// Open opens path with the given os.O_* flags and permission bits.
	Open(path string, flag int, perm os.FileMode) (File, error)

	// Remove unlinks a file or an empty directory.
	Remove(path string) error

	// Mkdir creates a single directory.
	Mkdir(path string, perm os.FileMode) error

	// Stat returns file info without opening the file.
	Stat(path string) (os.FileInfo, error)

	// Rename atomically renames oldpath to newpath, replacing newpath.
	Rename(oldpath, newpath string) error
}

// File is an open file handle. It is exclusively owned by whoever opened it
// and becomes invalid after Close.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Name returns the path the file was opened with.
	Name() string

	// Fd returns the OS descriptor. Only valid until Close.
	Fd() uintptr

	// Sync flushes data and metadata to stable storage.
	Sync() error

	// Datasync flushes data, and only the metadata needed to read it back.
	Datasync() error

	// Truncate changes the size of the file.
	Truncate(size int64) error

	// Stat returns file info for the open file.
	Stat() (os.FileInfo, error)
}

// osFS implements FS using the OS filesystem.
type osFS struct{}

// Default returns the OS filesystem.
func Default() FS {
	return &osFS{}
}

func (fs *osFS) Open(path string, flag int, perm os.FileMode) (File, error) {
	if err := checkPath("open", path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, wrapErr("open", path, err)
	}
	return &osFile{f: f}, nil
}

func (fs *osFS) Remove(path string) error {
	if err := checkPath("unlink", path); err != nil {
		return err
	}
	return wrapErr("unlink", path, os.Remove(path))
}

func (fs *osFS) Mkdir(path string, perm os.FileMode) error {
	if err := checkPath("mkdir", path); err != nil {
		return err
	}
	return wrapErr("mkdir", path, os.Mkdir(path, perm))
}

func (fs *osFS) Stat(path string) (os.FileInfo, error) {
	if err := checkPath("stat", path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, wrapErr("stat", path, err)
	}
	return info, nil
}

func (fs *osFS) Rename(oldpath, newpath string) error {
	if err := checkPath("rename", oldpath); err != nil {
		return err
	}
	if err := checkPath("rename", newpath); err != nil {
		return err
	}
	return wrapErr("rename", oldpath, os.Rename(oldpath, newpath))
}

// osFile wraps os.File for the File interface. Close releases the descriptor
// exactly once; later calls fail with InvalidArgument.
type osFile struct {
	f      *os.File
	closed atomic.Bool
}

func (of *osFile) Read(p []byte) (int, error) {
	n, err := of.f.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, wrapErr("read", of.f.Name(), err)
	}
	return n, err
}

func (of *osFile) Write(p []byte) (int, error) {
	n, err := of.f.Write(p)
	return n, wrapErr("write", of.f.Name(), err)
}

func (of *osFile) Seek(offset int64, whence int) (int64, error) {
	off, err := of.f.Seek(offset, whence)
	return off, wrapErr("lseek", of.f.Name(), err)
}

func (of *osFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := of.f.ReadAt(p, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, wrapErr("pread", of.f.Name(), err)
	}
	return n, err
}

func (of *osFile) WriteAt(p []byte, off int64) (int, error) {
	n, err := of.f.WriteAt(p, off)
	return n, wrapErr("pwrite", of.f.Name(), err)
}

func (of *osFile) Close() error {
	if !of.closed.CompareAndSwap(false, true) {
		return newError(InvalidArgument, "close", of.f.Name(), os.ErrClosed)
	}
	return wrapErr("close", of.f.Name(), of.f.Close())
}

func (of *osFile) Name() string {
	return of.f.Name()
}

func (of *osFile) Fd() uintptr {
	return of.f.Fd()
}

func (of *osFile) Sync() error {
	return wrapErr("fsync", of.f.Name(), of.f.Sync())
}

func (of *osFile) Datasync() error {
	return wrapErr("fdatasync", of.f.Name(), fdatasync(of.f))
}

func (of *osFile) Truncate(size int64) error {
	return wrapErr("ftruncate", of.f.Name(), of.f.Truncate(size))
}

func (of *osFile) Stat() (os.FileInfo, error) {
	info, err := of.f.Stat()
	if err != nil {
		return nil, wrapErr("fstat", of.f.Name(), err)
	}
	return info, nil
}
