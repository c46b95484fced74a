package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aalhour/raftio"
	"github.com/aalhour/raftio/internal/logging"
)

const testBlockSize = 4096

func openTestDir(t *testing.T, dir string) *raftio.Dir {
	t.Helper()
	opts := raftio.DefaultOptions()
	opts.DisableProbe = true
	opts.Logger = logging.Discard
	d, err := raftio.OpenDir(dir, opts)
	require.NoError(t, err)
	return d
}

// runTestChild runs the writer in-process for blocks blocks and returns its
// parsed report.
func runTestChild(t *testing.T, dir string, cycle, blocks uint64) childReport {
	t.Helper()
	opts := raftio.DefaultOptions()
	opts.Logger = logging.Discard
	cfg := childConfig{dir: dir, cycle: cycle, blockSize: testBlockSize, snapEvery: 4, maxBlocks: blocks}

	var out bytes.Buffer
	require.NoError(t, runChild(context.Background(), cfg, opts, &out))
	rep, err := parseChildOutput(&out)
	require.NoError(t, err)
	return rep
}

func TestBlockEncoding(t *testing.T) {
	buf := make([]byte, testBlockSize)
	encodeBlock(buf, 3, 7)
	require.NoError(t, checkBlock(buf, 3, 7))
	assert.Equal(t, blockValid, classifyBlock(buf, 3, 7))

	assert.Error(t, checkBlock(buf, 3, 8), "wrong index")
	assert.Error(t, checkBlock(buf, 4, 7), "wrong cycle")

	buf[100] ^= 0xff
	assert.ErrorContains(t, checkBlock(buf, 3, 7), "checksum")
	assert.Equal(t, blockTorn, classifyBlock(buf, 3, 7))

	assert.Equal(t, blockZero, classifyBlock(make([]byte, testBlockSize), 3, 7))
	assert.Equal(t, "torn", blockTorn.String())
}

func TestParseChildOutput(t *testing.T) {
	rep, err := parseChildOutput(strings.NewReader("mode async\nack 0\nack 1\nsnap snap-000001-00000001\nack 2\nac"))
	require.NoError(t, err)
	assert.Equal(t, "async", rep.mode)
	assert.EqualValues(t, 2, rep.lastAcked)
	assert.Equal(t, []string{"snap-000001-00000001"}, rep.snapshots)

	rep, err = parseChildOutput(strings.NewReader(""))
	require.NoError(t, err)
	assert.EqualValues(t, -1, rep.lastAcked)

	_, err = parseChildOutput(strings.NewReader("ack 0\nack 2\n"))
	assert.ErrorContains(t, err, "out of order")
}

func TestChildThenVerify(t *testing.T) {
	dir := t.TempDir()
	rep := runTestChild(t, dir, 1, 10)
	assert.EqualValues(t, 9, rep.lastAcked)
	assert.Equal(t, []string{"snap-000001-00000003", "snap-000001-00000007"}, rep.snapshots)
	assert.Contains(t, []string{"buffered", "async"}, rep.mode)

	res, err := verifyCycle(openTestDir(t, dir), 1, testBlockSize, rep)
	require.NoError(t, err)
	assert.Equal(t, verifyResult{}, res)
}

func TestVerify_UnacknowledgedTail(t *testing.T) {
	dir := t.TempDir()
	rep := runTestChild(t, dir, 2, 6)
	d := openTestDir(t, dir)

	// Pretend the kill landed after block 3 was written but before its ack,
	// and that the file had been extended past the written blocks.
	rep.lastAcked = 2
	require.NoError(t, d.TruncateFile(segmentName(2), 8*testBlockSize))

	res, err := verifyCycle(d, 2, testBlockSize, rep)
	require.NoError(t, err)
	assert.Equal(t, 3, res.tailValid)
	assert.Equal(t, 2, res.tailZero)
	assert.Equal(t, 0, res.tailTorn)
}

func TestVerify_DetectsLostAcknowledgedBlock(t *testing.T) {
	dir := t.TempDir()
	rep := runTestChild(t, dir, 3, 5)
	d := openTestDir(t, dir)

	require.NoError(t, d.TruncateFile(segmentName(3), 4*testBlockSize))
	_, err := verifyCycle(d, 3, testBlockSize, rep)
	assert.ErrorContains(t, err, "block 4 was acknowledged")
}

func TestVerify_DetectsCorruptAcknowledgedBlock(t *testing.T) {
	dir := t.TempDir()
	rep := runTestChild(t, dir, 4, 3)

	path := filepath.Join(dir, segmentName(4))
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xee}, testBlockSize+500)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = verifyCycle(openTestDir(t, dir), 4, testBlockSize, rep)
	assert.ErrorContains(t, err, "acknowledged block 1")
}

func TestVerify_MissingSnapshotAndStaleTemp(t *testing.T) {
	dir := t.TempDir()
	rep := runTestChild(t, dir, 5, 4)
	d := openTestDir(t, dir)

	require.NoError(t, d.MakeFile("snap-000005-00000009"+tmpSuffix, [][]byte{[]byte("partial")}))
	res, err := verifyCycle(d, 5, testBlockSize, rep)
	require.NoError(t, err)
	assert.Equal(t, 1, res.staleTemps)
	_, err = d.StatFile("snap-000005-00000009" + tmpSuffix)
	assert.ErrorIs(t, err, raftio.ErrNotFound)

	require.NoError(t, d.UnlinkFile(rep.snapshots[0]))
	_, err = verifyCycle(d, 5, testBlockSize, rep)
	assert.ErrorIs(t, err, raftio.ErrNotFound)
}

func TestVerify_KilledBeforeCreate(t *testing.T) {
	res, err := verifyCycle(openTestDir(t, t.TempDir()), 9, testBlockSize, childReport{lastAcked: -1})
	require.NoError(t, err)
	assert.Equal(t, verifyResult{}, res)
}

func TestParseCrashSchedule(t *testing.T) {
	got, err := parseCrashSchedule("1s, 250ms,5s")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 250 * time.Millisecond, 5 * time.Second}, got)

	for _, bad := range []string{"", "wat", "0s", "1s,-2s"} {
		_, err := parseCrashSchedule(bad)
		assert.Error(t, err, "schedule %q", bad)
	}
}
