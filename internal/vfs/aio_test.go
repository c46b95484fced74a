package vfs

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpcode_String(t *testing.T) {
	assert.Equal(t, "pread", OpPread.String())
	assert.Equal(t, "pwrite", OpPwrite.String())
	assert.Equal(t, "fsync", OpFsync.String())
	assert.Equal(t, "fdsync", OpFdsync.String())
	assert.Equal(t, "opcode(9)", Opcode(9).String())
}

func TestEvent_Result(t *testing.T) {
	ok := Event{Res: 4096}
	assert.Equal(t, 4096, ok.N())
	assert.NoError(t, ok.Err())

	failed := Event{Block: &ControlBlock{Op: OpPwrite}, Res: -int64(syscall.ENOSPC)}
	assert.Equal(t, 0, failed.N())
	err := failed.Err()
	assert.ErrorIs(t, err, syscall.ENOSPC)
	assert.Equal(t, IOFailure, KindOf(err))
	assert.Contains(t, err.Error(), "aio pwrite")

	unsupported := Event{Res: -int64(syscall.EOPNOTSUPP)}
	assert.ErrorIs(t, unsupported.Err(), ErrUnsupportedCapability)
}
