package vfs

import (
	"fmt"
	"unsafe"

	"github.com/ncw/directio"
)

// DefaultBlockSize is the alignment used when no probe result is available.
const DefaultBlockSize = 4096

// IsAligned checks if value is a multiple of alignment.
func IsAligned(value, alignment int) bool {
	if alignment <= 0 {
		return true
	}
	return value%alignment == 0
}

// AlignUp rounds value up to the next multiple of alignment.
func AlignUp(value, alignment int) int {
	if alignment <= 0 {
		return value
	}
	return ((value + alignment - 1) / alignment) * alignment
}

// AlignDown rounds value down to the previous multiple of alignment.
func AlignDown(value, alignment int) int {
	if alignment <= 0 {
		return value
	}
	return (value / alignment) * alignment
}

// AlignedBuffer is a byte buffer whose first byte sits on a directio.AlignSize
// boundary and whose capacity is a multiple of its block size, as direct I/O
// requires.
type AlignedBuffer struct {
	data      []byte
	blockSize int
}

// NewAlignedBuffer returns a zeroed buffer able to hold size bytes, rounded up
// to blockSize.
func NewAlignedBuffer(size, blockSize int) *AlignedBuffer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	n := AlignUp(size, blockSize)
	if n == 0 {
		n = blockSize
	}
	return &AlignedBuffer{
		data:      directio.AlignedBlock(n)[:size:n],
		blockSize: blockSize,
	}
}

// Bytes returns the buffer contents.
func (b *AlignedBuffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes in use.
func (b *AlignedBuffer) Len() int {
	return len(b.data)
}

// Cap returns the aligned capacity.
func (b *AlignedBuffer) Cap() int {
	return cap(b.data)
}

// BlockSize returns the block size the buffer was built for.
func (b *AlignedBuffer) BlockSize() int {
	return b.blockSize
}

// Resize sets the number of bytes in use. Bytes exposed by growing keep their
// previous content.
func (b *AlignedBuffer) Resize(size int) error {
	if size < 0 || size > cap(b.data) {
		return newError(InvalidArgument, "resize", "", fmt.Errorf("size %d outside [0, %d]", size, cap(b.data)))
	}
	b.data = b.data[:size]
	return nil
}

// Padded returns the buffer extended to the next block boundary. The padding
// is whatever the buffer held there, zero for a fresh buffer.
func (b *AlignedBuffer) Padded() []byte {
	return b.data[:AlignUp(len(b.data), b.blockSize)]
}

// Gather copies bufs into a new aligned buffer.
func Gather(bufs [][]byte, blockSize int) *AlignedBuffer {
	total := 0
	for _, buf := range bufs {
		total += len(buf)
	}
	ab := NewAlignedBuffer(total, blockSize)
	off := 0
	for _, buf := range bufs {
		off += copy(ab.data[off:], buf)
	}
	return ab
}

// memAligned reports whether buf starts on a directio.AlignSize boundary.
func memAligned(buf []byte) bool {
	if len(buf) == 0 || directio.AlignSize == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[0]))&uintptr(directio.AlignSize-1) == 0
}
