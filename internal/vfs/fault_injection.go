package vfs

// FaultInjectionFS wraps a real filesystem and injects failures, short
// transfers and simulated crashes so that cleanup and durability paths can
// be tested.
//
// The crash model is that of a power loss: file contents past the last
// Sync or Datasync are dropped, and files whose creation or rename was not
// followed by a sync of the parent directory disappear.

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrInjectedReadError is returned when a read error is injected.
	ErrInjectedReadError = errors.New("vfs: injected read error")

	// ErrInjectedWriteError is returned when a write error is injected.
	ErrInjectedWriteError = errors.New("vfs: injected write error")

	// ErrInjectedSyncError is returned when a sync error is injected.
	ErrInjectedSyncError = errors.New("vfs: injected sync error")

	// ErrInjectedRenameError is returned when a rename error is injected.
	ErrInjectedRenameError = errors.New("vfs: injected rename error")

	// ErrInjectedRemoveError is returned when a remove error is injected.
	ErrInjectedRemoveError = errors.New("vfs: injected remove error")
)

type faultOp int

const (
	faultRead faultOp = iota
	faultWrite
	faultSync
	faultRename
	faultRemove
)

var faultErrors = map[faultOp]error{
	faultRead:   ErrInjectedReadError,
	faultWrite:  ErrInjectedWriteError,
	faultSync:   ErrInjectedSyncError,
	faultRename: ErrInjectedRenameError,
	faultRemove: ErrInjectedRemoveError,
}

// FaultInjectionFS wraps an FS and allows injecting errors.
// It tracks unsynced data per file to simulate data loss on crash.
type FaultInjectionFS struct {
	base FS

	mu sync.RWMutex

	// Per-file state tracking, keyed by cleaned path.
	fileState map[string]*fileState

	// Injected faults: op -> path ("" matches every path).
	faults map[faultOp]string

	// Upper bound on bytes moved per Read/Write call; 0 means no cap.
	maxBytesPerCall int

	// When false, every mutating operation fails. Used to simulate a crash.
	filesystemActive bool
}

// fileState tracks the sync state of a file. Writes are modelled as
// extending the file: data below syncedSize is durable, data above it is
// lost by DropUnsyncedData.
type fileState struct {
	size       int64 // Highest offset written
	syncedSize int64 // Size durable after the last Sync/Datasync
	dirSynced  bool  // Whether the parent directory was synced after creation
}

// NewFaultInjectionFS creates a new fault-injecting filesystem wrapper.
func NewFaultInjectionFS(base FS) *FaultInjectionFS {
	return &FaultInjectionFS{
		base:             base,
		fileState:        make(map[string]*fileState),
		faults:           make(map[faultOp]string),
		filesystemActive: true,
	}
}

// SetFilesystemActive enables or disables the filesystem.
// When disabled, all writes fail. Used to simulate crash.
func (fs *FaultInjectionFS) SetFilesystemActive(active bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.filesystemActive = active
}

// InjectReadError makes reads of path fail. An empty path matches every file.
func (fs *FaultInjectionFS) InjectReadError(path string) {
	fs.inject(faultRead, path)
}

// InjectWriteError makes writes and truncations of path fail. Opening the
// file still succeeds. An empty path matches every file.
func (fs *FaultInjectionFS) InjectWriteError(path string) {
	fs.inject(faultWrite, path)
}

// InjectSyncError makes Sync and Datasync of path fail. An empty path matches
// every file.
func (fs *FaultInjectionFS) InjectSyncError(path string) {
	fs.inject(faultSync, path)
}

// InjectRenameError makes renames from path fail.
func (fs *FaultInjectionFS) InjectRenameError(path string) {
	fs.inject(faultRename, path)
}

// InjectRemoveError makes removing path fail.
func (fs *FaultInjectionFS) InjectRemoveError(path string) {
	fs.inject(faultRemove, path)
}

// SetMaxBytesPerCall caps the bytes moved by a single Read, ReadAt, Write or
// WriteAt, forcing short transfers that callers must retry. Capped writes
// report the short count with a nil error, as write(2) does. Zero removes the
// cap.
func (fs *FaultInjectionFS) SetMaxBytesPerCall(n int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.maxBytesPerCall = n
}

// ClearErrors clears all error injection and the transfer cap.
func (fs *FaultInjectionFS) ClearErrors() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	clear(fs.faults)
	fs.maxBytesPerCall = 0
}

func (fs *FaultInjectionFS) inject(op faultOp, path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if path != "" {
		path = filepath.Clean(path)
	}
	fs.faults[op] = path
}

// inactive fails mutating operations while the filesystem is deactivated.
func (fs *FaultInjectionFS) inactive(opName, path string) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.filesystemActive {
		return newError(IOFailure, opName, path, ErrInjectedWriteError)
	}
	return nil
}

// fault returns the injected error for op on path, or nil.
func (fs *FaultInjectionFS) fault(op faultOp, opName, path string) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if op != faultRead && !fs.filesystemActive {
		return newError(IOFailure, opName, path, ErrInjectedWriteError)
	}
	target, ok := fs.faults[op]
	if !ok || (target != "" && target != path) {
		return nil
	}
	return newError(IOFailure, opName, path, faultErrors[op])
}

func (fs *FaultInjectionFS) capLen(n int) int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.maxBytesPerCall > 0 && n > fs.maxBytesPerCall {
		return fs.maxBytesPerCall
	}
	return n
}

// DropUnsyncedData simulates a crash by dropping all unsynced data.
// This truncates all files to their last synced position.
func (fs *FaultInjectionFS) DropUnsyncedData() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var firstErr error
	for path, state := range fs.fileState {
		if state.syncedSize >= state.size {
			continue
		}
		f, err := fs.base.Open(path, os.O_RDWR, 0)
		if err != nil {
			if KindOf(err) != NotFound && firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := f.Truncate(state.syncedSize); err != nil && firstErr == nil {
			firstErr = err
		}
		_ = f.Close()
		state.size = state.syncedSize
	}
	return firstErr
}

// DeleteUnsyncedFiles removes files whose creation was never made durable by
// syncing their parent directory.
func (fs *FaultInjectionFS) DeleteUnsyncedFiles() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var firstErr error
	for path, state := range fs.fileState {
		if state.dirSynced {
			continue
		}
		if err := fs.base.Remove(path); err != nil && KindOf(err) != NotFound && firstErr == nil {
			firstErr = err
		}
		delete(fs.fileState, path)
	}
	return firstErr
}

// GetFileState returns the tracked state for a file.
func (fs *FaultInjectionFS) GetFileState(path string) (syncedSize, size int64, ok bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	state, exists := fs.fileState[filepath.Clean(path)]
	if !exists {
		return 0, 0, false
	}
	return state.syncedSize, state.size, true
}

// Open opens path through the base FS, tracking files opened for writing.
func (fs *FaultInjectionFS) Open(path string, flag int, perm os.FileMode) (File, error) {
	path = filepath.Clean(path)
	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0
	if writable {
		if err := fs.inactive("open", path); err != nil {
			return nil, err
		}
	} else if err := fs.fault(faultRead, "open", path); err != nil {
		return nil, err
	}

	_, statErr := fs.base.Stat(path)
	existed := statErr == nil

	base, err := fs.base.Open(path, flag, perm)
	if err != nil {
		return nil, err
	}

	if writable {
		fs.mu.Lock()
		if _, tracked := fs.fileState[path]; !tracked {
			state := &fileState{dirSynced: existed}
			if existed && flag&os.O_TRUNC == 0 {
				if info, err := base.Stat(); err == nil {
					state.size = info.Size()
					state.syncedSize = info.Size()
				}
			}
			fs.fileState[path] = state
		}
		fs.mu.Unlock()
	}

	return &faultFile{File: base, fs: fs, path: path}, nil
}

// Rename atomically renames a file.
func (fs *FaultInjectionFS) Rename(oldpath, newpath string) error {
	oldpath, newpath = filepath.Clean(oldpath), filepath.Clean(newpath)
	if err := fs.fault(faultRename, "rename", oldpath); err != nil {
		return err
	}
	if err := fs.base.Rename(oldpath, newpath); err != nil {
		return err
	}

	fs.mu.Lock()
	if state, ok := fs.fileState[oldpath]; ok {
		// The new name is not durable until its directory is synced.
		state.dirSynced = false
		fs.fileState[newpath] = state
		delete(fs.fileState, oldpath)
	} else {
		delete(fs.fileState, newpath)
	}
	fs.mu.Unlock()
	return nil
}

// Remove deletes a file.
func (fs *FaultInjectionFS) Remove(path string) error {
	path = filepath.Clean(path)
	if err := fs.fault(faultRemove, "unlink", path); err != nil {
		return err
	}
	if err := fs.base.Remove(path); err != nil {
		return err
	}

	fs.mu.Lock()
	delete(fs.fileState, path)
	fs.mu.Unlock()
	return nil
}

// Mkdir creates a directory.
func (fs *FaultInjectionFS) Mkdir(path string, perm os.FileMode) error {
	if err := fs.inactive("mkdir", filepath.Clean(path)); err != nil {
		return err
	}
	return fs.base.Mkdir(path, perm)
}

// Stat returns file info.
func (fs *FaultInjectionFS) Stat(path string) (os.FileInfo, error) {
	return fs.base.Stat(path)
}

// markDirSynced records that every tracked entry of dir is durable.
func (fs *FaultInjectionFS) markDirSynced(dir string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for path, state := range fs.fileState {
		if filepath.Dir(path) == dir {
			state.dirSynced = true
		}
	}
}

func (fs *FaultInjectionFS) recordWrite(path string, end int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if state, ok := fs.fileState[path]; ok && end > state.size {
		state.size = end
	}
}

func (fs *FaultInjectionFS) recordSync(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if state, ok := fs.fileState[path]; ok {
		state.syncedSize = state.size
	}
}

func (fs *FaultInjectionFS) recordTruncate(path string, size int64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if state, ok := fs.fileState[path]; ok {
		state.size = size
		state.syncedSize = min(state.syncedSize, size)
	}
}

// faultFile wraps a File with fault injection.
type faultFile struct {
	File
	fs   *FaultInjectionFS
	path string
}

func (f *faultFile) Read(p []byte) (int, error) {
	if err := f.fs.fault(faultRead, "read", f.path); err != nil {
		return 0, err
	}
	return f.File.Read(p[:f.fs.capLen(len(p))])
}

func (f *faultFile) ReadAt(p []byte, off int64) (int, error) {
	if err := f.fs.fault(faultRead, "pread", f.path); err != nil {
		return 0, err
	}
	return f.File.ReadAt(p[:f.fs.capLen(len(p))], off)
}

func (f *faultFile) Write(p []byte) (int, error) {
	if err := f.fs.fault(faultWrite, "write", f.path); err != nil {
		return 0, err
	}
	off, err := f.File.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	n, err := f.File.Write(p[:f.fs.capLen(len(p))])
	f.fs.recordWrite(f.path, off+int64(n))
	return n, err
}

func (f *faultFile) WriteAt(p []byte, off int64) (int, error) {
	if err := f.fs.fault(faultWrite, "pwrite", f.path); err != nil {
		return 0, err
	}
	n, err := f.File.WriteAt(p[:f.fs.capLen(len(p))], off)
	f.fs.recordWrite(f.path, off+int64(n))
	return n, err
}

func (f *faultFile) Sync() error {
	if err := f.fs.fault(faultSync, "fsync", f.path); err != nil {
		return err
	}
	if err := f.File.Sync(); err != nil {
		return err
	}
	f.fs.recordSync(f.path)
	if info, err := f.File.Stat(); err == nil && info.IsDir() {
		f.fs.markDirSynced(f.path)
	}
	return nil
}

func (f *faultFile) Datasync() error {
	if err := f.fs.fault(faultSync, "fdatasync", f.path); err != nil {
		return err
	}
	if err := f.File.Datasync(); err != nil {
		return err
	}
	f.fs.recordSync(f.path)
	return nil
}

func (f *faultFile) Truncate(size int64) error {
	if err := f.fs.fault(faultWrite, "ftruncate", f.path); err != nil {
		return err
	}
	if err := f.File.Truncate(size); err != nil {
		return err
	}
	f.fs.recordTruncate(f.path, size)
	return nil
}
