package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aalhour/raftio"
	"github.com/aalhour/raftio/internal/checksum"
	"github.com/aalhour/raftio/internal/compression"
	"github.com/aalhour/raftio/internal/logging"
	"github.com/aalhour/raftio/internal/vfs"
)

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report direct I/O and async I/O support of the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDir(withProbe)
			if err != nil {
				return err
			}
			caps := d.Capabilities()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "directory:      %s\n", d.Path())
			if caps.Direct() {
				fmt.Fprintf(out, "direct I/O:     yes (block size %d)\n", caps.DirectIOBlockSize)
			} else {
				fmt.Fprintln(out, "direct I/O:     no")
			}
			fmt.Fprintf(out, "async I/O:      %s\n", yesNo(caps.AsyncIO))
			return nil
		},
	}
}

func newEnsureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create the directory if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDir(noProbe, func(o *raftio.Options) { o.CreateIfMissing = true })
			if err != nil {
				return err
			}
			a.logger.Infof("%s%s ready", logging.NSCLI, d.Path())
			return nil
		},
	}
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync the directory's entries to stable storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDir(noProbe)
			if err != nil {
				return err
			}
			return d.Sync()
		},
	}
}

func newMakeCmd(a *app) *cobra.Command {
	var input, codec string
	cmd := &cobra.Command{
		Use:   "make NAME",
		Short: "Create a new file durably from --input (default stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := compression.ParseType(codec)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, input)
			if err != nil {
				return err
			}
			payload, err := compression.Compress(ct, data)
			if err != nil {
				return err
			}

			d, err := a.openDir(noProbe)
			if err != nil {
				return err
			}
			if err := d.MakeFile(args[0], [][]byte{payload}); err != nil {
				return err
			}
			if err := d.Sync(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s: %d bytes (%s, %d bytes raw)\n",
				args[0], len(payload), ct, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Input file (default stdin)")
	cmd.Flags().StringVar(&codec, "codec", getEnvStr("RAFTIO_CODEC", "none"), "Payload codec: none, snappy, zlib, lz4, zstd")
	return cmd
}

func newCatCmd(a *app) *cobra.Command {
	var codec string
	cmd := &cobra.Command{
		Use:   "cat NAME",
		Short: "Print a file's content, decoding it with --codec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := compression.ParseType(codec)
			if err != nil {
				return err
			}
			d, err := a.openDir(noProbe)
			if err != nil {
				return err
			}
			data, err := readFile(d, args[0])
			if err != nil {
				return err
			}
			data, err = compression.Decompress(ct, data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&codec, "codec", getEnvStr("RAFTIO_CODEC", "none"), "Payload codec: none, snappy, zlib, lz4, zstd")
	return cmd
}

func newStatCmd(a *app) *cobra.Command {
	var sum string
	cmd := &cobra.Command{
		Use:   "stat NAME",
		Short: "Print a file's size, whether it is empty and optionally its checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDir(noProbe)
			if err != nil {
				return err
			}
			info, err := d.StatFile(args[0])
			if err != nil {
				return err
			}
			empty, err := d.IsEmptyFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:     %s\n", args[0])
			fmt.Fprintf(out, "size:     %d\n", info.Size())
			fmt.Fprintf(out, "empty:    %s\n", yesNo(empty))
			if sum == "" {
				return nil
			}

			ct, err := checksum.ParseType(sum)
			if err != nil {
				return err
			}
			f, err := d.OpenFile(args[0], os.O_RDONLY)
			if err != nil {
				return err
			}
			defer f.Close()
			digest, err := checksum.Reader(ct, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "checksum: %s\n", digest)
			return nil
		},
	}
	cmd.Flags().StringVar(&sum, "checksum", "", "Also print a checksum: xxh3 or crc32c")
	return cmd
}

func newTruncateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "truncate NAME SIZE",
		Short: "Set a file's size and flush it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[1], err)
			}
			d, err := a.openDir(noProbe)
			if err != nil {
				return err
			}
			return d.TruncateFile(args[0], size)
		},
	}
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename FROM TO",
		Short: "Rename a file within the directory and sync the directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDir(noProbe)
			if err != nil {
				return err
			}
			if err := d.RenameFile(args[0], args[1]); err != nil {
				return err
			}
			return d.Sync()
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove a file and sync the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.openDir(noProbe)
			if err != nil {
				return err
			}
			if force {
				d.TryUnlinkFile(args[0])
			} else if err := d.UnlinkFile(args[0]); err != nil {
				return err
			}
			return d.Sync()
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Ignore a missing file or a failed removal")
	return cmd
}

func newZerosCmd(a *app) *cobra.Command {
	var offset int64
	cmd := &cobra.Command{
		Use:   "zeros NAME",
		Short: "Report whether a file is all zeros from --offset to its end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if offset < 0 {
				return fmt.Errorf("invalid offset %d", offset)
			}
			d, err := a.openDir(noProbe)
			if err != nil {
				return err
			}
			f, err := d.OpenFile(args[0], os.O_RDONLY)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				return err
			}
			if vfs.IsAtEOF(f) {
				a.logger.Infof("%s%s: offset %d is at or past the end of the file", logging.NSCLI, args[0], offset)
			}
			zeros, err := vfs.IsFilledWithTrailingZeros(f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%t\n", zeros)
			return nil
		},
	}
	cmd.Flags().Int64Var(&offset, "offset", 0, "Byte offset to start checking at")
	return cmd
}

func newWriteCmd(a *app) *cobra.Command {
	var (
		input  string
		offset int64
	)
	cmd := &cobra.Command{
		Use:   "write NAME",
		Short: "Durably write --input at --offset using the directory's best writer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, input)
			if err != nil {
				return err
			}
			d, err := a.openDir()
			if err != nil {
				return err
			}
			w, err := d.NewWriter(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			n, werr := w.Write(ctx, [][]byte{data}, offset)
			if err := w.Close(); err != nil && werr == nil {
				werr = err
			}
			if werr != nil {
				return werr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s at offset %d (%s)\n", n, args[0], offset, w.Mode())
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Input file (default stdin)")
	cmd.Flags().Int64Var(&offset, "offset", 0, "Byte offset to write at, a multiple of the writer's block size")
	return cmd
}

// readInput returns the content of path, or of stdin when path is empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// readFile reads name from d in full.
func readFile(d *raftio.Dir, name string) ([]byte, error) {
	f, err := d.OpenFile(name, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, info.Size())
	if err := vfs.ReadFully(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
