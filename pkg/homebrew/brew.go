package homebrew

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/arthur-debert/appsweep/pkg/command"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

// Brew runs brew subcommands.
type Brew struct {
	runner command.Runner
	path   string
	logger zerolog.Logger
}

// NewBrew uses brewPath, or <prefix>/bin/brew when empty.
func NewBrew(runner command.Runner, brewPath, prefix string) *Brew {
	if brewPath == "" {
		brewPath = filepath.Join(prefix, "bin", "brew")
	}
	return &Brew{runner: runner, path: brewPath, logger: logging.GetLogger("homebrew.brew")}
}

// Path is the brew executable in use.
func (b *Brew) Path() string { return b.path }

// Available reports whether the brew executable exists.
func (b *Brew) Available(fs afero.Fs) bool {
	ok, _ := afero.Exists(fs, b.path)
	return ok
}

// Upgrade runs "brew upgrade [--cask] <name>". Output lines are forwarded
// to onLine when set.
func (b *Brew) Upgrade(ctx context.Context, name string, isCask bool, onLine func(string)) error {
	args := []string{"upgrade"}
	if isCask {
		args = append(args, "--cask")
	}
	args = append(args, name)
	return b.run(ctx, args, onLine)
}

// Adopt installs a cask over an existing, unmanaged copy of its app.
func (b *Brew) Adopt(ctx context.Context, token string, onLine func(string)) error {
	return b.run(ctx, []string{"install", "--cask", "--adopt", token}, onLine)
}

func (b *Brew) run(ctx context.Context, args []string, onLine func(string)) error {
	spec := command.Spec{
		Name: b.path,
		Args: args,
		// brew must not stop to ask or auto-update mid-apply
		Env: []string{"HOMEBREW_NO_AUTO_UPDATE=1", "HOMEBREW_NO_INSTALL_CLEANUP=1", "NONINTERACTIVE=1"},
	}
	if onLine != nil {
		spec.OnLine = func(_ command.Stream, line string) { onLine(line) }
	}

	b.logger.Info().Strs("args", args).Msg("Running brew")
	if _, err := b.runner.Run(ctx, spec); err != nil {
		if command.IsCommandNotFound(err) {
			return errors.Wrapf(err, errors.ErrNotFound, "brew not found at %s", b.path)
		}
		return errors.Wrapf(err, errors.ErrUpdateFailed, "brew %s", strings.Join(args, " "))
	}
	return nil
}

// MaintenanceCommand is the shell command a scheduled run executes when
// no custom command is configured.
func MaintenanceCommand(brewPath string) string {
	q := command.Quote(brewPath)
	return q + " update && " + q + " upgrade && " + q + " cleanup"
}
