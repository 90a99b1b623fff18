// pkg/logging/logging_test.go
// TEST TYPE: Integration Tests
// DEPENDENCIES: OS filesystem (t.TempDir), environment variables
// PURPOSE: Log levels and the console and file sinks

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/appsweep/pkg/paths"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		wantLevel zerolog.Level
	}{
		{"default warn level", 0, zerolog.WarnLevel},
		{"negative is warn", -1, zerolog.WarnLevel},
		{"info level", 1, zerolog.InfoLevel},
		{"debug level", 2, zerolog.DebugLevel},
		{"trace level", 3, zerolog.TraceLevel},
		{"high verbosity defaults to trace", 5, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLevel, LevelFor(tt.verbosity))
		})
	}
}

func TestSetupLoggerUsesStateDir(t *testing.T) {
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })
	stateDir := filepath.Join(t.TempDir(), "state")
	t.Setenv(paths.EnvStateDir, stateDir)

	SetupLogger(1)

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	assert.FileExists(t, filepath.Join(stateDir, paths.LogFileName))
	assert.Equal(t, paths.New().LogFilePath(), filepath.Join(stateDir, paths.LogFileName))
}

func TestSetupWritesConsoleAndFile(t *testing.T) {
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })
	t.Setenv("NO_COLOR", "1")

	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "run.log")
	Setup(0, Output{Console: &console, File: file})

	logger := GetLogger("manager")
	logger.Warn().Msg("update failed")

	assert.Contains(t, console.String(), "update failed")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"manager"`)
	assert.Contains(t, string(data), "update failed")
}

func TestSetupFallsBackToConsole(t *testing.T) {
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	var console bytes.Buffer
	Setup(0, Output{Console: &console, File: filepath.Join(blocker, "run.log")})

	assert.Contains(t, console.String(), "Logging to console only")
}

func TestGetLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = zerolog.New(&buf)

	logger := GetLogger("homebrew")
	logger.Info().Msg("scan finished")

	assert.Contains(t, buf.String(), `"component":"homebrew"`)
	assert.Contains(t, buf.String(), "scan finished")
}

func TestLogCommandAndDuration(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)

	LogCommand("brew", []string{"upgrade", "--cask", "firefox"})
	LogDuration(time.Now().Add(-2*time.Second), "scan")

	output := buf.String()
	assert.Contains(t, output, "brew")
	assert.Contains(t, output, "firefox")
	assert.Contains(t, output, "Executing command")
	assert.True(t, strings.Contains(output, `"operation":"scan"`))
}

func TestLogOperationStart(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	logger := zerolog.New(&buf)

	done := LogOperationStart(logger, "sparkle-check")
	done()

	assert.Equal(t, 2, strings.Count(buf.String(), "sparkle-check"))
	assert.Contains(t, buf.String(), "Operation completed")
}
