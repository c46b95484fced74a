package vfs

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFilledWithTrailingZeros(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, true},
		{"zeros", make([]byte, 3*inspectChunk+17), true},
		{"first byte", append([]byte{1}, make([]byte, 100)...), false},
		{"last byte", append(make([]byte, 2*inspectChunk), 1), false},
		{"chunk boundary", append(make([]byte, inspectChunk-1), 0, 0xff), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsFilledWithTrailingZeros(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsFilledWithTrailingZeros_FromOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg")
	data := append([]byte("HEADER"), make([]byte, 5000)...)
	require.NoError(t, os.WriteFile(path, data, 0600))
	require.NoError(t, os.Truncate(path, 20000))

	f, err := Default().Open(path, os.O_RDONLY, 0)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Seek(6, io.SeekStart)
	require.NoError(t, err)
	ok, err := IsFilledWithTrailingZeros(f)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, IsAtEOF(f))

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	ok, err = IsFilledWithTrailingZeros(f)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsFilledWithTrailingZeros_ReadError(t *testing.T) {
	boom := errors.New("bad sector")
	_, err := IsFilledWithTrailingZeros(iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
}

func TestIsFilledWithTrailingZeros_ZeroProgress(t *testing.T) {
	r := &scriptedIO{steps: make([]step, maxZeroProgress+2)}
	r.data.Write(make([]byte, 10))
	_, err := IsFilledWithTrailingZeros(r)
	assert.ErrorIs(t, err, ErrShortTransfer)

	// Occasional empty reads are tolerated.
	r = &scriptedIO{steps: []step{{0, nil}, {4, nil}, {0, syscall.EINTR}}}
	r.data.Write(make([]byte, 10))
	ok, err := IsFilledWithTrailingZeros(r)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsAtEOF(t *testing.T) {
	r := bytes.NewReader([]byte("abc"))
	assert.False(t, IsAtEOF(r))

	_, err := r.Seek(2, io.SeekStart)
	require.NoError(t, err)
	assert.False(t, IsAtEOF(r))
	pos, err := r.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pos)

	_, err = r.Seek(3, io.SeekStart)
	require.NoError(t, err)
	assert.True(t, IsAtEOF(r))
}

type failingSeeker struct{}

func (failingSeeker) Seek(int64, int) (int64, error) { return 0, errors.New("not seekable") }

func TestIsAtEOF_SeekFailure(t *testing.T) {
	assert.False(t, IsAtEOF(failingSeeker{}))
}
