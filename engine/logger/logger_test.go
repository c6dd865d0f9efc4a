package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func resetGlobal(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		Sync()
		Log = zap.NewNop()
		Sugar = Log.Sugar()
	})
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("logs/oxy.log")
	assert.Equal(t, FileConfig{Path: "logs/oxy.log", MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 7, Compress: true}, cfg)
}

func TestLogLevelsFilterFileOutput(t *testing.T) {
	resetGlobal(t)
	path := filepath.Join(t.TempDir(), "nested", "oxy.log")
	require.NoError(t, InitWithFileConfig("warn", DefaultFileConfig(path), false))

	Log.Debug("hidden")
	Log.Info("hidden")
	Log.Warn("shown", zap.Int("light", 3))
	Named("shadow").Error("failed")
	Sync()

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.EqualValues(t, 3, lines[0]["light"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "shadow", lines[1]["logger"])
}

func TestSugarFollowsInit(t *testing.T) {
	resetGlobal(t)
	path := filepath.Join(t.TempDir(), "sugar.log")
	require.NoError(t, InitWithFileConfig("debug", FileConfig{Path: path, MaxSizeMB: 1}, false))

	Sugar.Debugw("extracted", "objects", 12)
	Sync()

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "extracted", lines[0]["msg"])
	assert.EqualValues(t, 12, lines[0]["objects"])
}

func TestLogRotation(t *testing.T) {
	resetGlobal(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "rotate.log")
	require.NoError(t, InitWithFileConfig("info", FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2}, false))

	long := strings.Repeat("x", 200)
	for i := range 8000 {
		Sugar.Infow("entry", "index", i, "payload", long)
	}
	Sync()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var rotated int
	for _, e := range entries {
		if e.Name() != "rotate.log" && strings.HasPrefix(e.Name(), "rotate-") {
			rotated++
		}
	}
	assert.GreaterOrEqual(t, rotated, 1)
	assert.FileExists(t, path)
}

func TestNopBeforeInit(t *testing.T) {
	resetGlobal(t)
	assert.NotPanics(t, func() {
		Log.Info("dropped")
		Named("engine").Debug("dropped")
		Sync()
	})
}
