// Package logging configures zerolog for appsweep. Every package logs
// through a component logger from GetLogger; the CLI calls SetupLogger once
// per process.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arthur-debert/appsweep/pkg/paths"
)

// Output says where log lines go. A nil Console means stderr and an empty
// File means appsweep.log under the state directory.
type Output struct {
	Console io.Writer
	File    string
}

// LevelFor maps the -v count to a level: warnings by default, then info,
// debug and trace.
func LevelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	}
	return zerolog.TraceLevel
}

// SetupLogger logs to stderr and the state directory's log file.
func SetupLogger(verbosity int) {
	Setup(verbosity, Output{})
}

// Setup replaces the global logger. A log file that cannot be opened is
// reported on the console and skipped.
func Setup(verbosity int, out Output) {
	zerolog.SetGlobalLevel(LevelFor(verbosity))

	if out.Console == nil {
		out.Console = os.Stderr
	}
	if out.File == "" {
		out.File = paths.New().LogFilePath()
	}

	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        out.Console,
		TimeFormat: time.Kitchen,
		NoColor:    !colorConsole(out.Console),
	}}
	file, err := openLogFile(out.File)
	if err == nil {
		writers = append(writers, file)
	}

	ctx := zerolog.New(io.MultiWriter(writers...)).With().Timestamp()
	if verbosity >= 2 {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	if err != nil {
		log.Warn().Err(err).Str("path", out.File).Msg("Logging to console only")
	}
	log.Debug().Int("verbosity", verbosity).Str("logFile", out.File).Msg("Logger initialized")
}

func colorConsole(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("cannot create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file: %w", err)
	}
	return f, nil
}

// GetLogger returns the global logger tagged with a component name.
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// LogCommand records an external command before it runs.
func LogCommand(cmd string, args []string) {
	log.Debug().
		Str("command", cmd).
		Strs("args", args).
		Msg("Executing command")
}

// LogDuration records how long operation took since start.
func LogDuration(start time.Time, operation string) {
	log.Debug().
		Str("operation", operation).
		Dur("duration", time.Since(start)).
		Msg("Operation completed")
}

// LogOperationStart logs operation on logger and returns the func that
// logs its completion.
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().
		Str("operation", operation).
		Msg("Operation started")

	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}
