// Package vfs exposes the filesystem abstraction raftio runs on, together
// with the primitives a log layer builds on: validated paths, reliable
// transfers, content inspection for crash recovery, direct I/O and the kernel
// asynchronous I/O context.
//
// Callers can pass their own FS in raftio.Options, or wrap the OS filesystem
// with fault injection in their tests.
package vfs

import (
	"github.com/aalhour/raftio/internal/logging"
	ivfs "github.com/aalhour/raftio/internal/vfs"
)

type (
	// FS is the set of filesystem operations the I/O layer needs.
	FS = ivfs.FS

	// File is an open file with an OS descriptor.
	File = ivfs.File

	// FaultInjectionFS wraps an FS and injects failures and simulated
	// crashes.
	FaultInjectionFS = ivfs.FaultInjectionFS

	// Logger receives the I/O layer's diagnostics.
	Logger = logging.Logger

	// Env binds an FS and a Logger and carries the directory, file and
	// probe operations.
	Env = ivfs.Env

	// Dir is a validated directory path.
	Dir = ivfs.Dir

	// Filename is a validated file name, free of separators.
	Filename = ivfs.Filename

	// Capabilities is the outcome of ProbeIOCapabilities.
	Capabilities = ivfs.Capabilities

	// Writer writes durably to a single file.
	Writer = ivfs.Writer

	// WriterOptions configures Env.NewWriter.
	WriterOptions = ivfs.WriterOptions

	// WriteMode identifies the mechanism a Writer uses.
	WriteMode = ivfs.WriteMode

	// AlignedBuffer is a memory-aligned buffer suitable for direct I/O.
	AlignedBuffer = ivfs.AlignedBuffer

	// AIOContext is a kernel asynchronous I/O context.
	AIOContext = ivfs.AIOContext

	// ControlBlock describes one asynchronous request.
	ControlBlock = ivfs.ControlBlock

	// Event is the completion of one ControlBlock.
	Event = ivfs.Event

	// Opcode is the operation carried by a ControlBlock.
	Opcode = ivfs.Opcode

	// Kind classifies an I/O error.
	Kind = ivfs.Kind

	// Error is the error type returned by the I/O layer.
	Error = ivfs.Error
)

// Error kinds.
const (
	IOFailure             = ivfs.IOFailure
	InvalidArgument       = ivfs.InvalidArgument
	NotFound              = ivfs.NotFound
	AlreadyExists         = ivfs.AlreadyExists
	ShortTransfer         = ivfs.ShortTransfer
	UnsupportedCapability = ivfs.UnsupportedCapability
)

// Sentinels matched by errors.Is against errors of each Kind.
var (
	ErrIOFailure             = ivfs.ErrIOFailure
	ErrInvalidArgument       = ivfs.ErrInvalidArgument
	ErrNotFound              = ivfs.ErrNotFound
	ErrAlreadyExists         = ivfs.ErrAlreadyExists
	ErrShortTransfer         = ivfs.ErrShortTransfer
	ErrUnsupportedCapability = ivfs.ErrUnsupportedCapability
)

// Errors returned by FaultInjectionFS when a fault is armed.
var (
	ErrInjectedReadError   = ivfs.ErrInjectedReadError
	ErrInjectedWriteError  = ivfs.ErrInjectedWriteError
	ErrInjectedSyncError   = ivfs.ErrInjectedSyncError
	ErrInjectedRenameError = ivfs.ErrInjectedRenameError
	ErrInjectedRemoveError = ivfs.ErrInjectedRemoveError
)

// Writer modes.
const (
	WriteBuffered = ivfs.WriteBuffered
	WriteAsync    = ivfs.WriteAsync
)

// AIO opcodes, per-request flags and wait modes.
const (
	OpPread  = ivfs.OpPread
	OpPwrite = ivfs.OpPwrite
	OpFsync  = ivfs.OpFsync
	OpFdsync = ivfs.OpFdsync

	RWFDSync  = ivfs.RWFDSync
	RWFNoWait = ivfs.RWFNoWait

	NoTimeout = ivfs.NoTimeout
)

// DefaultBlockSize is the Writer alignment used without direct I/O.
const DefaultBlockSize = ivfs.DefaultBlockSize

var (
	// NewDir validates a directory path.
	NewDir = ivfs.NewDir
	// NewFilename validates a file name.
	NewFilename = ivfs.NewFilename
	// Join returns the path of name inside dir.
	Join = ivfs.Join
	// IsProbeFile reports whether name is a probe's temporary file.
	IsProbeFile = ivfs.IsProbeFile

	// ReadFully reads exactly len(buf) bytes, retrying short reads.
	ReadFully = ivfs.ReadFully
	// WriteFully writes exactly len(buf) bytes, retrying short writes.
	WriteFully = ivfs.WriteFully

	// IsFilledWithTrailingZeros reports whether the rest of a reader is zero.
	IsFilledWithTrailingZeros = ivfs.IsFilledWithTrailingZeros
	// IsAtEOF reports whether a file's offset is at its end.
	IsAtEOF = ivfs.IsAtEOF

	// SetDirectIO switches an open file to direct I/O.
	SetDirectIO = ivfs.SetDirectIO
	// NewAlignedBuffer returns a zeroed, memory-aligned buffer.
	NewAlignedBuffer = ivfs.NewAlignedBuffer
	// NewAIOContext creates a kernel AIO context for at most n requests.
	NewAIOContext = ivfs.NewAIOContext

	// KindOf returns the Kind carried by an error.
	KindOf = ivfs.KindOf
)

// Default returns the OS filesystem.
func Default() FS {
	return ivfs.Default()
}

// NewEnv returns an Env over fs logging to logger. A nil fs is the OS
// filesystem and a nil logger writes warnings to stderr.
func NewEnv(fs FS, logger Logger) *Env {
	return ivfs.NewEnv(fs, logger)
}

// NewFaultInjectionFS wraps base. All operations pass through until a fault
// is injected.
func NewFaultInjectionFS(base FS) *FaultInjectionFS {
	return ivfs.NewFaultInjectionFS(base)
}
