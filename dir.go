package raftio

import (
	"fmt"
	"os"

	"github.com/aalhour/raftio/internal/vfs"
)

// Capabilities describes what the directory's filesystem supports, as found
// by the probe in OpenDir.
type Capabilities = vfs.Capabilities

// Writer writes durably to one file in a Dir.
type Writer = vfs.Writer

// Error kinds, matchable with errors.Is on any error returned by a Dir.
var (
	ErrIOFailure             = vfs.ErrIOFailure
	ErrInvalidArgument       = vfs.ErrInvalidArgument
	ErrNotFound              = vfs.ErrNotFound
	ErrAlreadyExists         = vfs.ErrAlreadyExists
	ErrShortTransfer         = vfs.ErrShortTransfer
	ErrUnsupportedCapability = vfs.ErrUnsupportedCapability
)

// Dir is an open log directory. File names passed to its methods are plain
// names inside the directory, never paths.
type Dir struct {
	env  *vfs.Env
	dir  vfs.Dir
	caps Capabilities
	opts Options
}

// OpenDir opens the log directory at path. With CreateIfMissing the
// directory is created if absent; otherwise it must exist.
func OpenDir(path string, opts *Options) (*Dir, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	dir, err := vfs.NewDir(path)
	if err != nil {
		return nil, err
	}
	env := vfs.NewEnv(opts.fs(), opts.logger())

	if opts.CreateIfMissing {
		if err := env.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("open dir %s: %w", path, err)
		}
	} else {
		info, err := env.FS().Stat(dir.String())
		if err != nil {
			return nil, fmt.Errorf("open dir %s: %w", path, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("open dir %s: %w: not a directory", path, ErrInvalidArgument)
		}
	}

	d := &Dir{env: env, dir: dir, opts: *opts}
	if !opts.DisableProbe {
		caps, err := env.ProbeIOCapabilities(dir)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", path, err)
		}
		d.caps = caps
	}
	return d, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.dir.String()
}

// Capabilities returns the probe result. It is the zero value when the probe
// was disabled.
func (d *Dir) Capabilities() Capabilities {
	return d.caps
}

// Join returns the full path of name inside the directory.
func (d *Dir) Join(name string) (string, error) {
	fn, err := vfs.NewFilename(name)
	if err != nil {
		return "", err
	}
	return vfs.Join(d.dir, fn), nil
}

// Sync makes entries created, renamed or removed in the directory durable.
func (d *Dir) Sync() error {
	if err := d.env.SyncDir(d.dir); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}

// MakeFile creates name, which must not exist, with the concatenation of
// bufs as its content, and flushes it. A failed MakeFile leaves no file.
func (d *Dir) MakeFile(name string, bufs [][]byte) error {
	fn, err := vfs.NewFilename(name)
	if err != nil {
		return err
	}
	if err := d.env.MakeFile(d.dir, fn, bufs); err != nil {
		return fmt.Errorf("make file: %w", err)
	}
	return nil
}

// TruncateFile sets the size of name to size and flushes the change.
func (d *Dir) TruncateFile(name string, size int64) error {
	fn, err := vfs.NewFilename(name)
	if err != nil {
		return err
	}
	if err := d.env.TruncateFile(d.dir, fn, size); err != nil {
		return fmt.Errorf("truncate file: %w", err)
	}
	return nil
}

// RenameFile atomically renames from to to, replacing to if it exists.
func (d *Dir) RenameFile(from, to string) error {
	src, err := vfs.NewFilename(from)
	if err != nil {
		return err
	}
	dst, err := vfs.NewFilename(to)
	if err != nil {
		return err
	}
	if err := d.env.RenameFile(d.dir, src, dst); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// UnlinkFile removes name.
func (d *Dir) UnlinkFile(name string) error {
	fn, err := vfs.NewFilename(name)
	if err != nil {
		return err
	}
	if err := d.env.UnlinkFile(d.dir, fn); err != nil {
		return fmt.Errorf("unlink file: %w", err)
	}
	return nil
}

// TryUnlinkFile removes name if it can and ignores any failure.
func (d *Dir) TryUnlinkFile(name string) {
	fn, err := vfs.NewFilename(name)
	if err != nil {
		return
	}
	d.env.TryUnlinkFile(d.dir, fn)
}

// StatFile returns metadata for name.
func (d *Dir) StatFile(name string) (os.FileInfo, error) {
	fn, err := vfs.NewFilename(name)
	if err != nil {
		return nil, err
	}
	info, err := d.env.StatFile(d.dir, fn)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	return info, nil
}

// IsEmptyFile reports whether name has size zero.
func (d *Dir) IsEmptyFile(name string) (bool, error) {
	fn, err := vfs.NewFilename(name)
	if err != nil {
		return false, err
	}
	empty, err := d.env.IsEmptyFile(d.dir, fn)
	if err != nil {
		return false, fmt.Errorf("is empty file: %w", err)
	}
	return empty, nil
}

// OpenFile opens name with the given os.O_* flags. The caller owns the
// returned file.
func (d *Dir) OpenFile(name string, flag int) (vfs.File, error) {
	fn, err := vfs.NewFilename(name)
	if err != nil {
		return nil, err
	}
	f, err := d.env.OpenFile(d.dir, fn, flag)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// NewWriter opens name for writing, creating it if needed, with the
// mechanism the directory's capabilities allow.
func (d *Dir) NewWriter(name string) (Writer, error) {
	fn, err := vfs.NewFilename(name)
	if err != nil {
		return nil, err
	}
	w, err := d.env.NewWriter(d.dir, fn, d.caps, vfs.WriterOptions{MaxInflight: d.opts.MaxInflightWrites})
	if err != nil {
		return nil, fmt.Errorf("new writer: %w", err)
	}
	return w, nil
}
