package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aalhour/raftio"
	"github.com/aalhour/raftio/internal/compression"
)

// snapshotCodec is applied to snapshot files so the verifier also catches a
// snapshot that was renamed into place with a truncated body.
const snapshotCodec = compression.SnappyCompression

func segmentName(cycle uint64) string {
	return fmt.Sprintf("seg-%06d", cycle)
}

func snapshotName(cycle, index uint64) string {
	return fmt.Sprintf("snap-%06d-%08d", cycle, index)
}

const tmpSuffix = ".tmp"

// childConfig is what the orchestrator passes to a child on its command line.
type childConfig struct {
	dir       string
	cycle     uint64
	blockSize int
	snapEvery uint64
	maxBlocks uint64
}

// runChild appends blocks to the cycle's segment with a Writer and reports
// each one on out once Write has returned. Every snapEvery blocks it also
// publishes a snapshot with the write-temp, rename, sync-directory sequence.
//
// Output lines:
//
//	mode <writer mode>
//	ack <index>
//	snap <name>
func runChild(ctx context.Context, cfg childConfig, opts *raftio.Options, out io.Writer) error {
	d, err := raftio.OpenDir(cfg.dir, opts)
	if err != nil {
		return err
	}
	w, err := d.NewWriter(segmentName(cfg.cycle))
	if err != nil {
		return err
	}
	err = writeBlocks(ctx, cfg, d, w, out)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeBlocks(ctx context.Context, cfg childConfig, d *raftio.Dir, w raftio.Writer, out io.Writer) error {
	if err := d.Sync(); err != nil {
		return err
	}
	fmt.Fprintf(out, "mode %s\n", w.Mode())

	buf := make([]byte, cfg.blockSize)
	for i := uint64(0); cfg.maxBlocks == 0 || i < cfg.maxBlocks; i++ {
		encodeBlock(buf, cfg.cycle, i)
		if _, err := w.Write(ctx, [][]byte{buf}, int64(i)*int64(cfg.blockSize)); err != nil {
			return fmt.Errorf("write block %d: %w", i, err)
		}
		fmt.Fprintf(out, "ack %d\n", i)

		if cfg.snapEvery > 0 && (i+1)%cfg.snapEvery == 0 {
			name, err := publishSnapshot(d, cfg.cycle, i, buf)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "snap %s\n", name)
		}
	}
	return nil
}

func publishSnapshot(d *raftio.Dir, cycle, index uint64, block []byte) (string, error) {
	payload, err := compression.Compress(snapshotCodec, block)
	if err != nil {
		return "", err
	}
	name := snapshotName(cycle, index)
	tmp := name + tmpSuffix
	if err := d.MakeFile(tmp, [][]byte{payload}); err != nil {
		return "", err
	}
	if err := d.RenameFile(tmp, name); err != nil {
		return "", err
	}
	if err := d.Sync(); err != nil {
		return "", err
	}
	return name, nil
}

// childReport is what the orchestrator learned from a child's output.
type childReport struct {
	mode      string
	lastAcked int64 // -1 if nothing was acknowledged
	snapshots []string
}

// parseChildOutput reads ack and snap lines until r is exhausted. A line cut
// short by the kill is ignored.
func parseChildOutput(r io.Reader) (childReport, error) {
	rep := childReport{lastAcked: -1}
	data, err := io.ReadAll(r)
	if err != nil {
		return rep, err
	}
	lines := strings.Split(string(data), "\n")
	// The last element is either empty or an unterminated line.
	for _, line := range lines[:len(lines)-1] {
		kind, arg, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		switch kind {
		case "mode":
			rep.mode = arg
		case "ack":
			var idx int64
			if _, err := fmt.Sscanf(arg, "%d", &idx); err != nil {
				return rep, fmt.Errorf("bad ack line %q", line)
			}
			if idx != rep.lastAcked+1 {
				return rep, fmt.Errorf("ack %d out of order after %d", idx, rep.lastAcked)
			}
			rep.lastAcked = idx
		case "snap":
			rep.snapshots = append(rep.snapshots, arg)
		}
	}
	return rep, nil
}
