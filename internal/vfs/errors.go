package vfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"syscall"
)

// Kind classifies a failure so the log layer can decide between retrying,
// treating the failure as a corruption signal, or falling back to buffered
// I/O.
type Kind int

const (
	// IOFailure is any platform failure not covered by a more specific kind
	// (disk error, permission, space exhaustion).
	IOFailure Kind = iota
	// InvalidArgument reports a length invariant violation or malformed
	// parameters.
	InvalidArgument
	// NotFound reports a missing file or directory.
	NotFound
	// AlreadyExists reports an exclusive create hitting an existing entry.
	AlreadyExists
	// ShortTransfer reports end-of-stream before the requested byte count.
	ShortTransfer
	// UnsupportedCapability reports that direct or asynchronous I/O is not
	// available. Callers fall back to buffered I/O on this kind.
	UnsupportedCapability
)

// Sentinel errors, one per Kind. errors.Is(err, ErrNotFound) matches any
// *Error of kind NotFound.
var (
	ErrIOFailure             = errors.New("vfs: I/O failure")
	ErrInvalidArgument       = errors.New("vfs: invalid argument")
	ErrNotFound              = errors.New("vfs: not found")
	ErrAlreadyExists         = errors.New("vfs: already exists")
	ErrShortTransfer         = errors.New("vfs: short transfer")
	ErrUnsupportedCapability = errors.New("vfs: unsupported capability")
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case IOFailure:
		return "IOFailure"
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case ShortTransfer:
		return "ShortTransfer"
	case UnsupportedCapability:
		return "UnsupportedCapability"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case InvalidArgument:
		return ErrInvalidArgument
	case NotFound:
		return ErrNotFound
	case AlreadyExists:
		return ErrAlreadyExists
	case ShortTransfer:
		return ErrShortTransfer
	case UnsupportedCapability:
		return ErrUnsupportedCapability
	default:
		return ErrIOFailure
	}
}

// Error is the error value returned by every fallible operation in this
// package. Op names the failing step ("open", "fsync", "io_submit", ...) and
// Path the file or directory involved, if any.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "vfs: " + msg
}

// Unwrap returns the underlying platform error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf returns the Kind carried by err. Errors not produced by this
// package classify as IOFailure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return classify(err)
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// wrapErr maps a platform error into the taxonomy. A nil error stays nil and
// an *Error passes through untouched.
func wrapErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(classify(err), op, path, err)
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NotFound
	case errors.Is(err, fs.ErrExist):
		return AlreadyExists
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrShortWrite):
		return ShortTransfer
	case errors.Is(err, syscall.EINVAL), errors.Is(err, syscall.ENAMETOOLONG):
		return InvalidArgument
	case errors.Is(err, syscall.ENOSYS), errors.Is(err, syscall.ENOTSUP),
		errors.Is(err, syscall.EOPNOTSUPP), errors.Is(err, errors.ErrUnsupported):
		return UnsupportedCapability
	default:
		return IOFailure
	}
}
