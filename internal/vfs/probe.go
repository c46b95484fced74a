package vfs

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/aalhour/raftio/internal/logging"
)

// ProbePrefix starts the name of every temporary file created by
// ProbeIOCapabilities. Layers that list a data directory should skip such
// names (see IsProbeFile).
const ProbePrefix = ".probe-"

const (
	// probeBlockSize is the space reserved in the probe file and the largest
	// direct I/O block size tried.
	probeBlockSize = 4096

	probeNameAttempts = 8
)

// probeBlockSizes are tried in order; the first one accepted by a direct
// write is the directory's block size.
var probeBlockSizes = []int{4096, 2048, 1024, 512}

// Capabilities is the result of ProbeIOCapabilities.
type Capabilities struct {
	// DirectIOBlockSize is the required alignment for direct I/O, or 0 if the
	// directory does not support it.
	DirectIOBlockSize int
	// AsyncIO reports whether fully asynchronous kernel writes work. It is
	// only ever true when direct I/O is available.
	AsyncIO bool
}

// Direct reports whether direct I/O is available.
func (c Capabilities) Direct() bool {
	return c.DirectIOBlockSize > 0
}

func (c Capabilities) String() string {
	return fmt.Sprintf("direct=%d async=%t", c.DirectIOBlockSize, c.AsyncIO)
}

// IsProbeFile reports whether name was generated by ProbeIOCapabilities.
func IsProbeFile(name string) bool {
	return strings.HasPrefix(name, ProbePrefix)
}

// ProbeIOCapabilities determines whether dir supports direct I/O, with which
// block size, and whether kernel asynchronous writes complete without
// blocking.
//
// The probe works on a temporary file that is unlinked right after creation,
// so nothing is left in dir whatever the outcome. Missing capabilities are a
// normal result, not an error; errors report that the probe itself could not
// run.
func (e *Env) ProbeIOCapabilities(dir Dir) (Capabilities, error) {
	f, err := e.createProbeFile(dir)
	if err != nil {
		return Capabilities{}, err
	}
	defer f.Close()

	caps, err := e.probeFile(f)
	if err != nil {
		return Capabilities{}, err
	}
	e.logger.Infof("%s%s: %s", logging.NSProbe, dir, caps)
	return caps, nil
}

// createProbeFile creates a uniquely named file in dir and unlinks it,
// returning the still-open descriptor.
func (e *Env) createProbeFile(dir Dir) (File, error) {
	for range probeNameAttempts {
		path := Join(dir, MustFilename(ProbePrefix+uuid.NewString()))
		f, err := e.fs.Open(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, FilePerm)
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := e.fs.Remove(path); err != nil {
			_ = f.Close()
			return nil, err
		}
		return f, nil
	}
	return nil, newError(AlreadyExists, "probe", dir.String(),
		fmt.Errorf("no free probe name after %d attempts", probeNameAttempts))
}
