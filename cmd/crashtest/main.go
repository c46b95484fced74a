// Crash test orchestrator for raftio.
//
// This tool repeatedly starts a child process that appends checksummed blocks
// to a segment through a raftio Writer and publishes snapshots with
// MakeFile, RenameFile and a directory sync. It kills the child at a random
// point, then verifies that everything the child acknowledged survived.
//
// A process kill does not lose the page cache, so this exercises the
// acknowledge-after-durable ordering and the cleanup paths, not power loss.
// Use FaultInjectionFS in unit tests for the latter.
//
// Usage: go run ./cmd/crashtest [flags]
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aalhour/raftio"
	"github.com/aalhour/raftio/internal/logging"
)

var (
	// Test configuration
	numCycles     = flag.Int("cycles", 10, "Number of crash cycles")
	crashInterval = flag.Duration("interval", 500*time.Millisecond, "Average time before a crash")
	minInterval   = flag.Duration("min-interval", 50*time.Millisecond, "Minimum time before a crash")
	schedule      = flag.String("schedule", "", "Comma-separated crash delays, overriding -interval (e.g. 100ms,1s)")
	dirPath       = flag.String("dir", "", "Test directory (default: temp directory)")
	keepDir       = flag.Bool("keep", false, "Keep the test directory")
	seed          = flag.Int64("seed", 0, "Random seed (0 for time-based)")
	killMode      = flag.String("kill-mode", "sigkill", "Kill mode: random, sigkill, sigterm")
	blockSize     = flag.Int("block", 4096, "Block size, a multiple of 4096")
	snapEvery     = flag.Uint64("snap-every", 16, "Publish a snapshot every N blocks (0 disables)")
	maxBlocks     = flag.Uint64("max-blocks", 1<<14, "Blocks per cycle if the child is not killed first")
	verbose       = flag.Bool("v", false, "Verbose output")

	// Child mode, set by the orchestrator when it re-executes itself.
	childMode  = flag.Bool("child", false, "Run as the writer child (internal)")
	childCycle = flag.Uint64("cycle", 0, "Cycle number (child mode)")
)

// ns is the log namespace of this tool.
const ns = "[crashtest] "

// Stats tracks crash test statistics.
type Stats struct {
	cycles       int
	killed       int
	exitedEarly  int
	acknowledged int64
	snapshots    int
	tailTorn     int
	staleTemps   int
	startTime    time.Time
}

func main() {
	flag.Parse()

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewDefaultLogger(level)
	logger.SetFatalHandler(func(string) { os.Exit(1) })

	if *blockSize <= blockHeaderSize || *blockSize%4096 != 0 {
		logger.Fatalf("%s-block must be a positive multiple of 4096, got %d", ns, *blockSize)
	}

	if *childMode {
		opts := raftio.DefaultOptions()
		opts.Logger = logger
		cfg := childConfig{dir: *dirPath, cycle: *childCycle, blockSize: *blockSize, snapEvery: *snapEvery, maxBlocks: *maxBlocks}
		if err := runChild(context.Background(), cfg, opts, os.Stdout); err != nil {
			logger.Fatalf("%schild: %v", ns, err)
		}
		return
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	delays, err := crashDelays(rng)
	if err != nil {
		logger.Fatalf("%s%v", ns, err)
	}

	testDir := setupDir(logger)
	defer cleanupDir(testDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("%sseed=%d cycles=%d dir=%s (repro: -seed=%d)", ns, *seed, len(delays), testDir, *seed)
	stats := &Stats{startTime: time.Now()}
	runErr := runCycles(ctx, testDir, delays, rng, stats, logger)
	printStats(stats)
	if runErr != nil {
		logger.Fatalf("%sCRASH TEST FAILED: %v", ns, runErr)
	}
	logger.Infof("%sall %d cycles verified", ns, stats.cycles)
}

// crashDelays returns the kill delay of each cycle.
func crashDelays(rng *rand.Rand) ([]time.Duration, error) {
	if *schedule != "" {
		return parseCrashSchedule(*schedule)
	}
	if *numCycles <= 0 {
		return nil, fmt.Errorf("-cycles must be positive")
	}
	delays := make([]time.Duration, *numCycles)
	for i := range delays {
		delays[i] = calculateCrashInterval(rng)
	}
	return delays, nil
}

// parseCrashSchedule parses a comma-separated list of positive durations.
func parseCrashSchedule(s string) ([]time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty crash schedule")
	}
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("crash schedule: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("crash schedule: non-positive delay %s", d)
		}
		out = append(out, d)
	}
	return out, nil
}

// calculateCrashInterval draws a delay in [min-interval, 2*interval).
func calculateCrashInterval(rng *rand.Rand) time.Duration {
	span := 2 * *crashInterval
	if span <= 0 {
		return *minInterval
	}
	return max(time.Duration(rng.Int63n(int64(span))), *minInterval)
}

func setupDir(logger logging.Logger) string {
	if *dirPath != "" {
		return *dirPath
	}
	dir, err := os.MkdirTemp("", "raftio-crashtest-*")
	if err != nil {
		logger.Fatalf("%screate temp dir: %v", ns, err)
	}
	return dir
}

func cleanupDir(dir string, logger logging.Logger) {
	if *keepDir || *dirPath != "" {
		logger.Infof("%sdirectory kept at %s", ns, dir)
		return
	}
	_ = os.RemoveAll(dir)
}

func runCycles(ctx context.Context, testDir string, delays []time.Duration, rng *rand.Rand, stats *Stats, logger logging.Logger) error {
	opts := raftio.DefaultOptions()
	opts.CreateIfMissing = true
	opts.DisableProbe = true
	opts.Logger = logger
	d, err := raftio.OpenDir(testDir, opts)
	if err != nil {
		return err
	}

	for i, delay := range delays {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cycle := uint64(i + 1)
		stats.cycles++

		rep, killed, err := runChildAndCrash(ctx, testDir, cycle, delay, rng, logger)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", cycle, err)
		}
		if killed {
			stats.killed++
		} else {
			stats.exitedEarly++
		}

		res, err := verifyCycle(d, cycle, *blockSize, rep)
		if err != nil {
			return fmt.Errorf("cycle %d (seed %d): %w", cycle, *seed, err)
		}
		stats.acknowledged += rep.lastAcked + 1
		stats.snapshots += len(rep.snapshots)
		stats.tailTorn += res.tailTorn
		stats.staleTemps += res.staleTemps
		logger.Infof("%scycle %d: mode=%s killed after %s, acked=%d snapshots=%d, %s",
			ns, cycle, rep.mode, delay.Round(time.Millisecond), rep.lastAcked+1, len(rep.snapshots), res)
	}
	return nil
}

// runChildAndCrash starts the writer child for cycle, kills it after delay
// and returns what it acknowledged. killed is false if the child finished
// first.
func runChildAndCrash(ctx context.Context, testDir string, cycle uint64, delay time.Duration,
	rng *rand.Rand, logger logging.Logger) (childReport, bool, error) {
	args := []string{
		"-child",
		"-dir", testDir,
		"-cycle", fmt.Sprint(cycle),
		"-block", fmt.Sprint(*blockSize),
		"-snap-every", fmt.Sprint(*snapEvery),
		"-max-blocks", fmt.Sprint(*maxBlocks),
	}
	if *verbose {
		args = append(args, "-v")
	}
	cmd := exec.Command(os.Args[0], args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return childReport{}, false, err
	}
	logger.Debugf("%scycle %d: child pid %d, crash in %s", ns, cycle, cmd.Process.Pid, delay)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	killed := false
	select {
	case err := <-done:
		if err != nil {
			return childReport{}, false, fmt.Errorf("child failed: %w", err)
		}
	case <-time.After(delay):
		if err := killProcess(cmd.Process, rng, logger); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return childReport{}, false, err
		}
		<-done
		killed = true
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return childReport{}, false, ctx.Err()
	}

	rep, err := parseChildOutput(&stdout)
	return rep, killed, err
}

func killProcess(proc *os.Process, rng *rand.Rand, logger logging.Logger) error {
	var sig syscall.Signal
	switch *killMode {
	case "sigterm":
		sig = syscall.SIGTERM
	case "random":
		sig = syscall.SIGKILL
		if rng.Intn(2) == 0 {
			sig = syscall.SIGTERM
		}
	default:
		sig = syscall.SIGKILL
	}
	logger.Debugf("%ssending %s to pid %d", ns, sig, proc.Pid)
	return proc.Signal(sig)
}

func printStats(stats *Stats) {
	elapsed := time.Since(stats.startTime)
	fmt.Printf("\ncycles=%d killed=%d exited-early=%d acknowledged-blocks=%d snapshots=%d torn-tail-blocks=%d stale-temps=%d elapsed=%s\n",
		stats.cycles, stats.killed, stats.exitedEarly, stats.acknowledged, stats.snapshots,
		stats.tailTorn, stats.staleTemps, elapsed.Round(time.Millisecond))
}
