package command

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

// Result is the captured outcome of a finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Spec describes one invocation.
type Spec struct {
	Name string
	Args []string
	Dir  string
	Env  []string

	// OnLine receives every stdout and stderr line as it arrives.
	OnLine func(stream Stream, line string)
}

// Stream names an output stream.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// waitDelay bounds how long Wait keeps copying output after the process
// was killed, in case grandchildren still hold the pipes.
const waitDelay = 2 * time.Second

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger zerolog.Logger
}

// NewExecRunner creates a runner logging under the command component.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{logger: logging.GetLogger("command")}
}

// Run starts the command, drains both pipes concurrently and waits for
// exit. A non-zero exit status is returned as ErrCommandFailed with the
// captured output still available in Result.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Name == "" {
		return Result{}, errors.New(errors.ErrInvalidInput, "command requires a name")
	}

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.WaitDelay = waitDelay
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdoutPipe, stdoutWriter := io.Pipe()
	stderrPipe, stderrWriter := io.Pipe()
	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	logging.LogCommand(spec.Name, spec.Args)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, errors.Wrapf(err, errors.ErrCommandFailed, "failed to start %s", spec.Name)
	}

	var (
		wg             sync.WaitGroup
		stdout, stderr bytes.Buffer
		mu             sync.Mutex
	)
	waitErr := make(chan error, 1)

	wg.Add(3)
	go func() {
		defer wg.Done()
		defer stdoutWriter.Close()
		defer stderrWriter.Close()
		waitErr <- cmd.Wait()
	}()
	go func() {
		defer wg.Done()
		drain(stdoutPipe, &stdout, &mu, Stdout, spec.OnLine)
	}()
	go func() {
		defer wg.Done()
		drain(stderrPipe, &stderr, &mu, Stderr, spec.OnLine)
	}()
	wg.Wait()

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	err := <-waitErr
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	r.logger.Debug().
		Str("command", spec.Name).
		Int("exitCode", res.ExitCode).
		Dur("duration", res.Duration).
		Msg("Command finished")

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, errors.Wrapf(ctxErr, errors.ErrCanceled, "%s canceled", spec.Name)
		}
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = err.Error()
		}
		return res, errors.Wrapf(err, errors.ErrCommandFailed, "%s failed: %s", spec.Name, msg).
			WithDetail("exitCode", res.ExitCode)
	}
	return res, nil
}

func drain(r io.ReadCloser, buf *bytes.Buffer, mu *sync.Mutex, stream Stream, onLine func(Stream, string)) {
	defer r.Close()
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			mu.Lock()
			buf.WriteString(line)
			mu.Unlock()
			if onLine != nil {
				// progress bars redraw with carriage returns
				for _, part := range strings.Split(strings.TrimRight(line, "\r\n"), "\r") {
					if part != "" {
						onLine(stream, part)
					}
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// IsCommandNotFound reports whether err means the binary does not exist.
func IsCommandNotFound(err error) bool {
	if stderrors.Is(err, exec.ErrNotFound) {
		return true
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode() == 127
	}
	return false
}

// Output is a convenience wrapper returning trimmed stdout.
func Output(ctx context.Context, r Runner, name string, args ...string) (string, error) {
	res, err := r.Run(ctx, Spec{Name: name, Args: args})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}
