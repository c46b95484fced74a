//go:build linux

package vfs

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync syncs file data to disk without flushing metadata that is not
// needed to read the data back (atime/mtime).
func fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
