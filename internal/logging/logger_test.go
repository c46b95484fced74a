package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     Level
		wantError bool
		wantWarn  bool
		wantInfo  bool
		wantDebug bool
	}{
		{LevelError, true, false, false, false},
		{LevelWarn, true, true, false, false},
		{LevelInfo, true, true, true, false},
		{LevelDebug, true, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, tt.level)

			logger.Errorf("error message")
			logger.Warnf("warn message")
			logger.Infof("info message")
			logger.Debugf("debug message")

			output := buf.String()
			assert.Equal(t, tt.wantError, strings.Contains(output, "ERROR "))
			assert.Equal(t, tt.wantWarn, strings.Contains(output, "WARN "))
			assert.Equal(t, tt.wantInfo, strings.Contains(output, "INFO "))
			assert.Equal(t, tt.wantDebug, strings.Contains(output, "DEBUG "))
		})
	}
}

func TestDefaultLogger_Formatted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelDebug)

	logger.Errorf("error %d", 1)
	logger.Warnf("warn %d", 2)
	logger.Infof("info %d", 3)
	logger.Debugf("debug %d", 4)

	output := buf.String()
	for _, want := range []string{"error 1", "warn 2", "info 3", "debug 4"} {
		assert.Contains(t, output, want)
	}
}

func TestDefaultLogger_FatalHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelError)

	var mu sync.Mutex
	var got string
	logger.SetFatalHandler(func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		got = msg
	})

	logger.Fatalf("%sdisk gone: %s", NSFS, "/var/lib/raft")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "[fs] disk gone: /var/lib/raft", got)
	assert.Contains(t, buf.String(), "FATAL [fs] disk gone")
}

func TestDiscardLogger(t *testing.T) {
	// Just verify it doesn't panic.
	Discard.Errorf("error %d", 1)
	Discard.Warnf("warn %d", 1)
	Discard.Infof("info %d", 1)
	Discard.Debugf("debug %d", 1)
	Discard.Fatalf("fatal %d", 1)
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelError, "ERROR"},
		{LevelWarn, "WARN"},
		{LevelInfo, "INFO"},
		{LevelDebug, "DEBUG"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"error", LevelError, false},
		{"WARN", LevelWarn, false},
		{"warning", LevelWarn, false},
		{" Info ", LevelInfo, false},
		{"debug", LevelDebug, false},
		{"trace", LevelWarn, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNamespaceConstants(t *testing.T) {
	for _, ns := range []string{NSFS, NSProbe, NSAIO, NSWriter, NSCLI} {
		assert.True(t, strings.HasPrefix(ns, "["), "namespace %q should be in [name] format", ns)
		assert.Contains(t, ns, "] ")
	}
}

func TestOrDefault(t *testing.T) {
	var typedNil *DefaultLogger
	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(typedNil))
	assert.NotNil(t, OrDefault(typedNil))
	assert.Same(t, Discard, OrDefault(Discard))
}

func TestLogFormat_Standard(t *testing.T) {
	// Format: "TIMESTAMP LEVEL [component] message"
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo)

	logger.Infof("%s%s", NSProbe, "probe finished")

	output := buf.String()
	assert.Contains(t, output, "INFO ")
	assert.Contains(t, output, "[probe]")
	assert.Contains(t, output, "probe finished")
}
