//go:build !linux

package vfs

// probeFile reports no capabilities: direct and asynchronous I/O are only
// probed on Linux.
func (e *Env) probeFile(f File) (Capabilities, error) {
	return Capabilities{}, nil
}
