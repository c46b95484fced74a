package vfs

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// maxZeroProgress bounds how many consecutive (0, nil) results a transfer
// tolerates before giving up.
const maxZeroProgress = 16

// ReadFully reads exactly len(buf) bytes from r.
//
// The underlying read may return fewer bytes than requested even on success;
// ReadFully keeps reading until buf is full. Reaching end-of-file first
// returns a ShortTransfer error.
func ReadFully(r io.Reader, buf []byte) error {
	var done, idle int
	for done < len(buf) {
		n, err := r.Read(buf[done:])
		done += n
		if done == len(buf) {
			return nil
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return shortTransfer("read", r, done, len(buf))
		case retryable(err):
		default:
			return wrapErr("read", nameOf(r), err)
		}
		if n == 0 {
			idle++
			if idle > maxZeroProgress {
				return shortTransfer("read", r, done, len(buf))
			}
		} else {
			idle = 0
		}
	}
	return nil
}

// WriteFully writes exactly len(buf) bytes to w, retrying partial writes.
func WriteFully(w io.Writer, buf []byte) error {
	var done, idle int
	for done < len(buf) {
		n, err := w.Write(buf[done:])
		if n < 0 || n > len(buf)-done {
			return newError(IOFailure, "write", nameOf(w), fmt.Errorf("invalid write count %d", n))
		}
		done += n
		if done == len(buf) {
			return nil
		}
		if err != nil && !retryable(err) {
			return wrapErr("write", nameOf(w), err)
		}
		if n == 0 {
			idle++
			if idle > maxZeroProgress {
				return shortTransfer("write", w, done, len(buf))
			}
		} else {
			idle = 0
		}
	}
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}

func shortTransfer(op string, x any, done, want int) error {
	return newError(ShortTransfer, op, nameOf(x),
		fmt.Errorf("transferred %d of %d bytes: %w", done, want, io.ErrUnexpectedEOF))
}

func nameOf(x any) string {
	if n, ok := x.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}
