package vfs

import (
	"fmt"
	"syscall"
	"time"
)

// Opcode is the operation carried by a ControlBlock. Values match the kernel
// IOCB_CMD_* constants.
type Opcode uint16

const (
	// OpPread reads Buf from Offset.
	OpPread Opcode = 0
	// OpPwrite writes Buf at Offset.
	OpPwrite Opcode = 1
	// OpFsync flushes the file's data and metadata.
	OpFsync Opcode = 2
	// OpFdsync flushes the file's data.
	OpFdsync Opcode = 3
)

// String returns the kernel name of the opcode.
func (o Opcode) String() string {
	switch o {
	case OpPread:
		return "pread"
	case OpPwrite:
		return "pwrite"
	case OpFsync:
		return "fsync"
	case OpFdsync:
		return "fdsync"
	default:
		return fmt.Sprintf("opcode(%d)", uint16(o))
	}
}

// Per-request flags (RWF_*), set in ControlBlock.RWFlags.
const (
	// RWFDSync makes a write durable as if followed by fdatasync.
	RWFDSync = 0x2
	// RWFNoWait fails the request with EAGAIN instead of blocking in the
	// submitting thread.
	RWFNoWait = 0x8
)

// NoTimeout makes GetEvents wait until minNr completions are available.
const NoTimeout time.Duration = -1

// ControlBlock describes one asynchronous request.
//
// Buf must stay untouched from Submit until the completion carrying Data has
// been returned by GetEvents. The context keeps Buf pinned in the meantime.
type ControlBlock struct {
	Op      Opcode
	Fd      uintptr
	Buf     []byte
	Offset  int64
	RWFlags int

	// Data is returned unchanged in the matching Event. Completions arrive in
	// any order; Data is the only correlation.
	Data uint64
}

// Event is the completion of one ControlBlock.
type Event struct {
	// Data is the ControlBlock's Data.
	Data uint64
	// Block is the submitted ControlBlock.
	Block *ControlBlock
	// Res is the byte count on success or a negated errno.
	Res int64
	// Res2 is a secondary, operation-specific result.
	Res2 int64
}

// N returns the number of bytes transferred, or 0 if the request failed.
func (e Event) N() int {
	if e.Res < 0 {
		return 0
	}
	return int(e.Res)
}

// Err returns the request's error, or nil if it succeeded.
func (e Event) Err() error {
	if e.Res >= 0 {
		return nil
	}
	op := "aio"
	if e.Block != nil {
		op = "aio " + e.Block.Op.String()
	}
	errno := syscall.Errno(-e.Res)
	return newError(classify(errno), op, "", errno)
}

// aioState tracks an AIOContext through uninitialized, ready and destroyed.
// The zero value is uninitialized, so only NewAIOContext yields a usable
// context.
type aioState int

const (
	aioUninitialized aioState = iota
	aioReady
	aioDestroyed
)

func (s aioState) String() string {
	switch s {
	case aioUninitialized:
		return "uninitialized"
	case aioReady:
		return "ready"
	default:
		return "destroyed"
	}
}

func errNotReady(op string, s aioState) error {
	return newError(InvalidArgument, op, "", fmt.Errorf("aio context %s", s))
}
