package main

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/aalhour/raftio/internal/checksum"
)

// Block layout:
//
//	[0:8)   index within the segment, little endian
//	[8:16)  cycle number
//	[16:24) xxh3 of the payload
//	[24:)   deterministic payload
const blockHeaderSize = 24

// blockState classifies a block read back after a crash.
type blockState int

const (
	blockValid blockState = iota
	blockZero
	blockTorn
)

func (s blockState) String() string {
	switch s {
	case blockValid:
		return "valid"
	case blockZero:
		return "zero"
	default:
		return "torn"
	}
}

func encodeBlock(buf []byte, cycle, index uint64) {
	binary.LittleEndian.PutUint64(buf[0:8], index)
	binary.LittleEndian.PutUint64(buf[8:16], cycle)
	fillPayload(buf[blockHeaderSize:], cycle, index)
	binary.LittleEndian.PutUint64(buf[16:24], checksum.Value(checksum.TypeXXH3, buf[blockHeaderSize:]))
}

// fillPayload writes an xorshift stream seeded by cycle and index. It never
// produces an all-zero payload.
func fillPayload(p []byte, cycle, index uint64) {
	x := (cycle*0x9e3779b97f4a7c15 ^ index) | 1
	for i := range p {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		p[i] = byte(x) | 1
	}
}

// classifyBlock reports whether buf holds block index of cycle, is still
// all zeros, or holds anything else.
func classifyBlock(buf []byte, cycle, index uint64) blockState {
	if isZero(buf) {
		return blockZero
	}
	if err := checkBlock(buf, cycle, index); err != nil {
		return blockTorn
	}
	return blockValid
}

func checkBlock(buf []byte, cycle, index uint64) error {
	if len(buf) <= blockHeaderSize {
		return fmt.Errorf("block of %d bytes is too short", len(buf))
	}
	if got := binary.LittleEndian.Uint64(buf[0:8]); got != index {
		return fmt.Errorf("block %d: header index %d", index, got)
	}
	if got := binary.LittleEndian.Uint64(buf[8:16]); got != cycle {
		return fmt.Errorf("block %d: header cycle %d, want %d", index, got, cycle)
	}
	want := binary.LittleEndian.Uint64(buf[16:24])
	if got := checksum.Value(checksum.TypeXXH3, buf[blockHeaderSize:]); got != want {
		return fmt.Errorf("block %d: checksum %016x, header says %016x", index, got, want)
	}
	return nil
}

func isZero(buf []byte) bool {
	var zeros [512]byte
	for len(buf) > 0 {
		n := min(len(buf), len(zeros))
		if !bytes.Equal(buf[:n], zeros[:n]) {
			return false
		}
		buf = buf[n:]
	}
	return true
}
