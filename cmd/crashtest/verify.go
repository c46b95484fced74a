package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aalhour/raftio"
	"github.com/aalhour/raftio/internal/compression"
	"github.com/aalhour/raftio/internal/vfs"
)

// verifyResult summarizes the state of one cycle's files after the kill.
type verifyResult struct {
	// Blocks past the last acknowledged one, by state.
	tailValid, tailZero, tailTorn int
	// Snapshot temp files removed because their rename never happened.
	staleTemps int
}

func (r verifyResult) String() string {
	return fmt.Sprintf("tail valid=%d zero=%d torn=%d, stale temps=%d",
		r.tailValid, r.tailZero, r.tailTorn, r.staleTemps)
}

// verifyCycle checks that every acknowledged block and snapshot of cycle is
// intact, classifies the unacknowledged tail, and removes leftover snapshot
// temp files.
func verifyCycle(d *raftio.Dir, cycle uint64, blockSize int, rep childReport) (verifyResult, error) {
	var res verifyResult

	if err := verifySegment(d, cycle, blockSize, rep.lastAcked, &res); err != nil {
		return res, err
	}
	for _, name := range rep.snapshots {
		if err := verifySnapshot(d, cycle, blockSize, name); err != nil {
			return res, err
		}
	}

	stale, err := removeStaleTemps(d)
	if err != nil {
		return res, err
	}
	res.staleTemps = stale
	return res, nil
}

func verifySegment(d *raftio.Dir, cycle uint64, blockSize int, lastAcked int64, res *verifyResult) error {
	name := segmentName(cycle)
	f, err := d.OpenFile(name, os.O_RDONLY)
	if errors.Is(err, raftio.ErrNotFound) && lastAcked < 0 {
		// Killed before the writer created the file.
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	blocks := info.Size() / int64(blockSize)
	if blocks <= lastAcked {
		return fmt.Errorf("%s: %d bytes hold %d blocks, block %d was acknowledged",
			name, info.Size(), blocks, lastAcked)
	}

	buf := make([]byte, blockSize)
	for i := int64(0); i < blocks; i++ {
		r := io.NewSectionReader(f, i*int64(blockSize), int64(blockSize))
		if err := vfs.ReadFully(r, buf); err != nil {
			return fmt.Errorf("%s: read block %d: %w", name, i, err)
		}
		if i <= lastAcked {
			if err := checkBlock(buf, cycle, uint64(i)); err != nil {
				return fmt.Errorf("%s: acknowledged %w", name, err)
			}
			continue
		}
		switch classifyBlock(buf, cycle, uint64(i)) {
		case blockValid:
			res.tailValid++
		case blockZero:
			res.tailZero++
		case blockTorn:
			res.tailTorn++
		}
	}
	return nil
}

func verifySnapshot(d *raftio.Dir, cycle uint64, blockSize int, name string) error {
	f, err := d.OpenFile(name, os.O_RDONLY)
	if err != nil {
		return fmt.Errorf("acknowledged snapshot: %w", err)
	}
	defer f.Close()
	payload, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	block, err := compression.Decompress(snapshotCodec, payload)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", name, err)
	}
	if len(block) != blockSize {
		return fmt.Errorf("snapshot %s: %d bytes, want %d", name, len(block), blockSize)
	}

	var snapCycle, index uint64
	if _, err := fmt.Sscanf(name, "snap-%d-%d", &snapCycle, &index); err != nil || snapCycle != cycle {
		return fmt.Errorf("snapshot %s: unexpected name", name)
	}
	if err := checkBlock(block, cycle, index); err != nil {
		return fmt.Errorf("snapshot %s: %w", name, err)
	}
	return nil
}

// removeStaleTemps deletes snapshot temp files a killed child left behind.
func removeStaleTemps(d *raftio.Dir) (int, error) {
	entries, err := os.ReadDir(d.Path())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if vfs.IsProbeFile(e.Name()) || !strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}
		d.TryUnlinkFile(e.Name())
		n++
	}
	if n > 0 {
		return n, d.Sync()
	}
	return 0, nil
}
