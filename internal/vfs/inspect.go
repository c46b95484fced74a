package vfs

import (
	"errors"
	"fmt"
	"io"
)

// inspectChunk is the read size used when scanning for trailing zeros.
const inspectChunk = 4096

// IsFilledWithTrailingZeros reports whether every byte from r's current
// offset to end-of-file is zero. It consumes r.
//
// Crash recovery uses it to tell a segment's pre-allocated, never-written
// tail apart from a torn or corrupted entry.
func IsFilledWithTrailingZeros(r io.Reader) (bool, error) {
	buf := make([]byte, inspectChunk)
	var scanned, idle int
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b != 0 {
				return false, nil
			}
		}
		scanned += n
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil && !retryable(err) {
			return false, wrapErr("read", nameOf(r), err)
		}
		if n == 0 {
			idle++
			if idle > maxZeroProgress {
				return false, newError(ShortTransfer, "read", nameOf(r),
					fmt.Errorf("no progress after %d bytes: %w", scanned, io.ErrUnexpectedEOF))
			}
		} else {
			idle = 0
		}
	}
}

// IsAtEOF reports whether the next read from f would return no bytes. The
// offset of f is left unchanged. Seek failures report false.
func IsAtEOF(f io.Seeker) bool {
	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return false
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return false
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return false
	}
	return offset >= size
}
