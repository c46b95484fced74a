package vfs

import (
	"fmt"
	"strings"
)

const (
	// PathMax is the maximum size of a full path, in bytes.
	PathMax = 1024

	// FilenameMax is the maximum length of a filename component.
	FilenameMax = 128

	// SepLen is the length of the path separator.
	SepLen = 1

	// DirMax is the maximum length of a directory path. Any valid Dir joined
	// with any valid Filename stays strictly below PathMax.
	DirMax = PathMax - SepLen - FilenameMax - 1
)

// Dir is a directory path whose length has been checked against DirMax.
// The zero value is not a valid directory.
type Dir struct {
	path string
}

// NewDir validates dir and returns it as a Dir.
func NewDir(dir string) (Dir, error) {
	if dir == "" {
		return Dir{}, newError(InvalidArgument, "dir", dir, fmt.Errorf("empty directory path"))
	}
	if len(dir) > DirMax {
		return Dir{}, newError(InvalidArgument, "dir", dir,
			fmt.Errorf("directory path is %d bytes, limit is %d", len(dir), DirMax))
	}
	if strings.IndexByte(dir, 0) >= 0 {
		return Dir{}, newError(InvalidArgument, "dir", dir, fmt.Errorf("directory path contains NUL"))
	}
	return Dir{path: dir}, nil
}

// MustDir is like NewDir but panics on an invalid path.
func MustDir(dir string) Dir {
	d, err := NewDir(dir)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the directory path.
func (d Dir) String() string {
	return d.path
}

// IsZero reports whether d was never initialized.
func (d Dir) IsZero() bool {
	return d.path == ""
}

// Filename is a single path component whose length has been checked against
// FilenameMax.
type Filename struct {
	name string
}

// NewFilename validates name and returns it as a Filename.
func NewFilename(name string) (Filename, error) {
	switch {
	case name == "" || name == "." || name == "..":
		return Filename{}, newError(InvalidArgument, "filename", name, fmt.Errorf("not a file name"))
	case len(name) > FilenameMax:
		return Filename{}, newError(InvalidArgument, "filename", name,
			fmt.Errorf("file name is %d bytes, limit is %d", len(name), FilenameMax))
	case strings.ContainsAny(name, "/\x00"):
		return Filename{}, newError(InvalidArgument, "filename", name,
			fmt.Errorf("file name contains a separator or NUL"))
	}
	return Filename{name: name}, nil
}

// MustFilename is like NewFilename but panics on an invalid name.
func MustFilename(name string) Filename {
	f, err := NewFilename(name)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the file name.
func (f Filename) String() string {
	return f.name
}

// Join returns dir + "/" + name. The result always fits in PathMax for values
// built by NewDir and NewFilename; anything else is a programming error.
func Join(dir Dir, name Filename) string {
	if dir.IsZero() || name.name == "" {
		panic("vfs: Join on uninitialized Dir or Filename")
	}
	if len(dir.path)+SepLen+len(name.name) >= PathMax {
		panic(fmt.Sprintf("vfs: joined path exceeds %d bytes", PathMax))
	}
	if strings.HasSuffix(dir.path, "/") {
		return dir.path + name.name
	}
	return dir.path + "/" + name.name
}

// checkPath rejects full paths that do not fit in PathMax.
func checkPath(op, path string) error {
	if path == "" {
		return newError(InvalidArgument, op, path, fmt.Errorf("empty path"))
	}
	if len(path) >= PathMax {
		return newError(InvalidArgument, op, path,
			fmt.Errorf("path is %d bytes, limit is %d", len(path), PathMax-1))
	}
	return nil
}
