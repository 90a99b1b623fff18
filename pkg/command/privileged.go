package command

import (
	"context"
	"strings"
)

// PrivilegedRunner runs a shell script with elevated rights. Scripts are
// handed over whole so that multi-step operations need one authorization.
type PrivilegedRunner interface {
	RunScript(ctx context.Context, script string) (Result, error)
}

// ShellRunner runs scripts with the current user's rights.
type ShellRunner struct {
	Runner Runner
}

func (s ShellRunner) RunScript(ctx context.Context, script string) (Result, error) {
	return s.Runner.Run(ctx, Spec{Name: "/bin/sh", Args: []string{"-c", script}})
}

// SudoRunner runs scripts through non-interactive sudo.
type SudoRunner struct {
	Runner Runner
}

func (s SudoRunner) RunScript(ctx context.Context, script string) (Result, error) {
	return s.Runner.Run(ctx, Spec{Name: "sudo", Args: []string{"-n", "/bin/sh", "-c", script}})
}

// AppleScriptRunner asks for an administrator password through the system
// authorization dialog.
type AppleScriptRunner struct {
	Runner Runner
}

func (a AppleScriptRunner) RunScript(ctx context.Context, script string) (Result, error) {
	return a.Runner.Run(ctx, Spec{Name: "osascript", Args: []string{"-e", AppleScriptCommand(script)}})
}

// AppleScriptCommand wraps a shell script in "do shell script ... with
// administrator privileges".
func AppleScriptCommand(script string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(script)
	return `do shell script "` + escaped + `" with administrator privileges`
}

// NewPrivilegedRunner maps a configured privilege mode to a runner.
// Unknown modes run unprivileged.
func NewPrivilegedRunner(mode string, r Runner) PrivilegedRunner {
	switch mode {
	case "sudo":
		return SudoRunner{Runner: r}
	case "applescript":
		return AppleScriptRunner{Runner: r}
	default:
		return ShellRunner{Runner: r}
	}
}

// Quote single-quotes s for POSIX shells.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
