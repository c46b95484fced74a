//go:build crashtest

// Package testutil provides crash-testing hooks for the I/O layer.
//
// Kill points deterministically exit the process at specific code locations
// for whitebox crash testing: a test re-executes itself with a target kill
// point set, lets the child die there, and then inspects what the child left
// on disk.
//
// Usage:
//
//	// In production code (compiled out without build tag):
//	testutil.MaybeKill(testutil.KPMakeFileAfterWrite)
//
//	// In the child process (set via env var or API):
//	testutil.SetKillPoint(testutil.KPMakeFileAfterWrite)
//
// Build with kill points enabled:
//
//	go test -tags crashtest ./...
package testutil

import (
	"os"
	"sync"
	"sync/atomic"
)

// killPointState holds the global kill point configuration.
type killPointState struct {
	// target is the name of the kill point that should trigger exit.
	target atomic.Value // stores string

	// armed controls whether kill points are active without clearing target.
	armed atomic.Bool

	mu        sync.RWMutex
	hitCounts map[string]int64
}

var globalKillPoint = &killPointState{
	hitCounts: make(map[string]int64),
}

func init() {
	if target := os.Getenv(KillPointEnvVar); target != "" {
		globalKillPoint.target.Store(target)
		globalKillPoint.armed.Store(true)
	}
}

// SetKillPoint sets the target kill point name and arms kill points.
func SetKillPoint(name string) {
	globalKillPoint.target.Store(name)
	globalKillPoint.armed.Store(true)
}

// ClearKillPoint clears the kill point target.
func ClearKillPoint() {
	globalKillPoint.target.Store("")
	globalKillPoint.armed.Store(false)
}

// ArmKillPoint enables kill point processing.
func ArmKillPoint() {
	globalKillPoint.armed.Store(true)
}

// DisarmKillPoint disables kill point processing without clearing the target.
func DisarmKillPoint() {
	globalKillPoint.armed.Store(false)
}

// IsKillPointArmed returns whether kill points are currently armed.
func IsKillPointArmed() bool {
	return globalKillPoint.armed.Load()
}

// GetKillPointTarget returns the current kill point target.
func GetKillPointTarget() string {
	if v := globalKillPoint.target.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// GetKillPointHitCount returns how many times a kill point was reached while armed.
func GetKillPointHitCount(name string) int64 {
	globalKillPoint.mu.RLock()
	defer globalKillPoint.mu.RUnlock()
	return globalKillPoint.hitCounts[name]
}

// ResetKillPointCounts resets all hit counts.
func ResetKillPointCounts() {
	globalKillPoint.mu.Lock()
	defer globalKillPoint.mu.Unlock()
	globalKillPoint.hitCounts = make(map[string]int64)
}

// MaybeKill exits the process with code 0 if the kill points are armed and
// name is the target.
func MaybeKill(name string) {
	if !globalKillPoint.armed.Load() {
		return
	}

	globalKillPoint.mu.Lock()
	globalKillPoint.hitCounts[name]++
	globalKillPoint.mu.Unlock()

	target, ok := globalKillPoint.target.Load().(string)
	if !ok || target == "" {
		return
	}
	if target == name {
		// Exit code 0: intentional kill, not a failure.
		os.Exit(0)
	}
}
