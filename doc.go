/*
Package raftio provides the filesystem layer underneath a crash-safe
replicated log: durable file creation, truncation, renaming and removal,
directory syncing, reliable full-length transfers, and the direct and
asynchronous I/O capabilities of the directory the log lives in.

A log directory is opened once with OpenDir. Unless Options.DisableProbe is
set, OpenDir probes the directory with a short-lived scratch file and records
whether it accepts O_DIRECT writes (and at which block size) and whether the
kernel completes non-blocking durable AIO writes there. Writers obtained from
Dir.NewWriter pick their mechanism from that result.

# Usage

	opts := raftio.DefaultOptions()
	opts.CreateIfMissing = true
	d, err := raftio.OpenDir("/var/lib/raft", opts)
	if err != nil {
		return err
	}
	if err := d.MakeFile("snapshot-1-100", [][]byte{meta, data}); err != nil {
		return err
	}
	// The new entry is durable only after the directory is synced.
	if err := d.Sync(); err != nil {
		return err
	}

# Durability

MakeFile and TruncateFile flush file data before returning. Entries created,
renamed or removed in the directory are not durable until Dir.Sync. A Writer
returns from Write only once the data is on stable storage. Writer offsets
are multiples of Writer.BlockSize and the last block written is padded with
zeros, whichever mechanism the directory allows.

The primitives underneath Dir (path validation, full-length transfers,
trailing-zero inspection for recovery, direct I/O and the kernel AIO
context) are exported by package vfs.

# Concurrency

A Dir is safe for concurrent use by multiple goroutines. Files returned by
OpenFile are not; each Writer serializes its own calls.

# Platforms

Direct I/O is available on Linux (O_DIRECT) and macOS (F_NOCACHE). Kernel
AIO is Linux only; elsewhere the probe reports no async support and writers
fall back to buffered writes with fdatasync.
*/
package raftio
