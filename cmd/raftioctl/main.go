// Package main provides raftioctl, a tool for exercising the raftio I/O layer
// against a real directory.
//
// Usage:
//
//	raftioctl --dir=<path> <command> [options]
//
// Commands:
//
//	probe                  Report direct I/O and async I/O support
//	ensure                 Create the directory if missing
//	sync                   Sync the directory's entries
//	make NAME              Create NAME durably from --input (default stdin)
//	cat NAME               Print NAME, decoding with --codec
//	stat NAME              Print size, emptiness and optional --checksum
//	truncate NAME SIZE     Set NAME's size and flush it
//	rename FROM TO         Rename within the directory and sync it
//	rm NAME                Remove NAME (--force ignores failures)
//	zeros NAME             Check that NAME is all zeros from --offset on
//	write NAME             Durably write --input at --offset via a Writer
//	version                Print version information
//
// The global flags and --codec take their defaults from RAFTIO_CONFIG,
// RAFTIO_LOG_LEVEL, RAFTIO_DIR and RAFTIO_CODEC.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aalhour/raftio"
	"github.com/aalhour/raftio/internal/logging"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// app holds global flag values and the state built from them before a
// subcommand runs.
type app struct {
	configPath string
	logLevel   string
	dirPath    string

	opts   *raftio.Options
	logger *logging.DefaultLogger
}

func main() {
	a := &app{}
	root := newRootCmd(a)
	if err := root.Execute(); err != nil {
		l := a.logger
		if l == nil {
			l = logging.NewDefaultLogger(logging.LevelError)
		}
		l.SetFatalHandler(func(string) { os.Exit(1) })
		l.Fatalf("%s%v", logging.NSCLI, err)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "raftioctl",
		Short:         "Exercise the raftio I/O layer against a directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", getEnvStr("RAFTIO_CONFIG", ""), "YAML options file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", getEnvStr("RAFTIO_LOG_LEVEL", ""), "Log level: error, warn, info, debug (overrides the options file)")
	root.PersistentFlags().StringVar(&a.dirPath, "dir", getEnvStr("RAFTIO_DIR", ""), "Log directory")

	root.AddCommand(
		newProbeCmd(a),
		newEnsureCmd(a),
		newSyncCmd(a),
		newMakeCmd(a),
		newCatCmd(a),
		newStatCmd(a),
		newTruncateCmd(a),
		newRenameCmd(a),
		newRmCmd(a),
		newZerosCmd(a),
		newWriteCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "raftioctl v%s (%s)\n", version, commit)
			},
		},
	)
	return root
}

// setup loads options and builds the logger. Flags win over the options
// file, which wins over defaults.
func (a *app) setup(cmd *cobra.Command) error {
	opts := raftio.DefaultOptions()
	if a.configPath != "" {
		loaded, err := raftio.LoadOptionsFile(a.configPath)
		if err != nil {
			return err
		}
		opts = loaded
	}
	if a.logLevel != "" {
		opts.LogLevel = a.logLevel
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		level = logging.LevelWarn
	}
	a.logger = logging.NewLogger(cmd.ErrOrStderr(), level)
	opts.Logger = a.logger
	a.opts = opts
	a.logger.Debugf("%sdir=%q config=%q level=%s", logging.NSCLI, a.dirPath, a.configPath, level)
	return nil
}

// openDir opens --dir with the loaded options, adjusted by each of adjust.
func (a *app) openDir(adjust ...func(*raftio.Options)) (*raftio.Dir, error) {
	if a.dirPath == "" {
		return nil, fmt.Errorf("--dir is required")
	}
	opts := *a.opts
	for _, fn := range adjust {
		fn(&opts)
	}
	return raftio.OpenDir(a.dirPath, &opts)
}

func noProbe(o *raftio.Options) { o.DisableProbe = true }
func withProbe(o *raftio.Options) { o.DisableProbe = false }

func getEnvStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
