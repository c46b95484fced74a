package raftio

// options.go implements directory configuration options.

import (
	"errors"
	"fmt"

	"github.com/aalhour/raftio/internal/logging"
	"github.com/aalhour/raftio/vfs"
)

// Logger is the logging interface used by OpenDir and everything below it.
type Logger = logging.Logger

// DefaultLogLevel is the level of the stderr logger used when
// Options.Logger is nil and Options.LogLevel is empty.
const DefaultLogLevel = "warn"

// maxInflightWritesLimit caps MaxInflightWrites. The kernel's per-context
// limit is far higher; a log writer never needs more than a handful.
const maxInflightWritesLimit = 1024

// ErrInvalidOptions is returned by Validate and OpenDir for unusable options.
var ErrInvalidOptions = errors.New("raftio: invalid options")

// Options configures OpenDir.
type Options struct {
	// CreateIfMissing creates the directory if it does not exist. Only the
	// last path component is created.
	// Default: false
	CreateIfMissing bool

	// DisableProbe skips the I/O capability probe. The directory then
	// reports no direct I/O and no async I/O, and every writer is buffered.
	// Default: false
	DisableProbe bool

	// MaxInflightWrites is the number of async writes a Writer may have
	// pending at once. Zero selects the writer default.
	// Default: 4
	MaxInflightWrites int

	// LogLevel selects the level of the default stderr logger: "error",
	// "warn", "info" or "debug". Ignored when Logger is set.
	// Default: "warn"
	LogLevel string

	// FS is the filesystem the directory lives on.
	// If nil, vfs.Default() is used.
	FS vfs.FS

	// Logger receives probe results, fallbacks and cleanup failures.
	// If nil, a logger writing to stderr at LogLevel is used.
	Logger Logger
}

// DefaultOptions returns a new Options with default values.
func DefaultOptions() *Options {
	return &Options{
		CreateIfMissing:   false,
		DisableProbe:      false,
		MaxInflightWrites: 4,
		LogLevel:          DefaultLogLevel,
		FS:                nil, // Will use vfs.Default()
		Logger:            nil, // Will use a stderr logger at LogLevel
	}
}

// Validate reports the first problem with o, wrapped in ErrInvalidOptions.
func (o *Options) Validate() error {
	if o.MaxInflightWrites < 0 || o.MaxInflightWrites > maxInflightWritesLimit {
		return fmt.Errorf("%w: max_inflight_writes %d out of range [0, %d]",
			ErrInvalidOptions, o.MaxInflightWrites, maxInflightWritesLimit)
	}
	if o.LogLevel != "" {
		if _, err := logging.ParseLevel(o.LogLevel); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}
	return nil
}

// logger returns the configured logger, or a stderr logger at LogLevel.
// Call only after Validate.
func (o *Options) logger() Logger {
	if !logging.IsNil(o.Logger) {
		return o.Logger
	}
	level := logging.LevelWarn
	if o.LogLevel != "" {
		level, _ = logging.ParseLevel(o.LogLevel)
	}
	return logging.NewDefaultLogger(level)
}

func (o *Options) fs() vfs.FS {
	if o.FS == nil {
		return vfs.Default()
	}
	return o.FS
}
