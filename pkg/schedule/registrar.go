package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"howett.net/plist"

	"github.com/arthur-debert/appsweep/pkg/command"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

// CalendarInterval is one StartCalendarInterval entry.
type CalendarInterval struct {
	Weekday int `plist:"Weekday"`
	Hour    int `plist:"Hour"`
	Minute  int `plist:"Minute"`
}

// Agent is the launchd job descriptor.
type Agent struct {
	Label                 string             `plist:"Label"`
	ProgramArguments      []string           `plist:"ProgramArguments"`
	StartCalendarInterval []CalendarInterval `plist:"StartCalendarInterval"`
	StandardOutPath       string             `plist:"StandardOutPath,omitempty"`
	StandardErrorPath     string             `plist:"StandardErrorPath,omitempty"`
	EnvironmentVariables  map[string]string  `plist:"EnvironmentVariables,omitempty"`
	RunAtLoad             bool               `plist:"RunAtLoad"`
	ProcessType           string             `plist:"ProcessType,omitempty"`
}

// Descriptor builds the agent that runs shellCommand at every enabled
// occurrence.
func Descriptor(label, shellCommand, logPath string, occs []Occurrence) Agent {
	a := Agent{
		Label:            label,
		ProgramArguments: []string{"/bin/sh", "-c", shellCommand},
		ProcessType:      "Background",
		// launchd starts jobs with a minimal PATH
		EnvironmentVariables: map[string]string{
			"PATH":                  "/opt/homebrew/bin:/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin",
			"HOMEBREW_NO_ENV_HINTS": "1",
			"HOMEBREW_NO_ANALYTICS": "1",
		},
	}
	if logPath != "" {
		a.StandardOutPath = logPath
		a.StandardErrorPath = logPath
	}
	for _, o := range occs {
		if !o.Enabled {
			continue
		}
		a.StartCalendarInterval = append(a.StartCalendarInterval, CalendarInterval{
			Weekday: o.Weekday,
			Hour:    o.Hour,
			Minute:  o.Minute,
		})
	}
	return a
}

// Status is what launchctl reports about the agent.
type Status struct {
	Installed    bool // descriptor file present
	Loaded       bool
	State        string
	Runs         int
	LastExitCode string
}

// Registrar installs the agent for the current user.
type Registrar struct {
	fs     afero.Fs
	runner command.Runner
	label  string
	path   string
	uid    int
	logger zerolog.Logger
}

// NewRegistrar manages the agent label whose descriptor lives at path.
func NewRegistrar(fs afero.Fs, runner command.Runner, label, path string) *Registrar {
	return &Registrar{
		fs:     fs,
		runner: runner,
		label:  label,
		path:   path,
		uid:    os.Getuid(),
		logger: logging.GetLogger("schedule"),
	}
}

// Path is the descriptor file.
func (r *Registrar) Path() string { return r.path }

func (r *Registrar) domain() string  { return fmt.Sprintf("gui/%d", r.uid) }
func (r *Registrar) service() string { return r.domain() + "/" + r.label }

// Write renders the agent as an XML plist at the descriptor path.
func (r *Registrar) Write(a Agent) error {
	if len(a.StartCalendarInterval) == 0 {
		return errors.New(errors.ErrScheduleInvalid, "agent has no enabled run times")
	}
	data, err := plist.MarshalIndent(a, plist.XMLFormat, "\t")
	if err != nil {
		return errors.Wrap(err, errors.ErrPlistEncode, "cannot encode launch agent")
	}
	if err := r.fs.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(r.path))
	}
	if err := afero.WriteFile(r.fs, r.path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", r.path)
	}
	return nil
}

// Read decodes the descriptor currently on disk.
func (r *Registrar) Read() (Agent, error) {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Agent{}, errors.Newf(errors.ErrFileNotFound, "no launch agent at %s", r.path)
		}
		return Agent{}, errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", r.path)
	}
	var a Agent
	if _, err := plist.Unmarshal(data, &a); err != nil {
		return Agent{}, errors.Wrapf(err, errors.ErrPlistInvalid, "cannot decode %s", r.path)
	}
	return a, nil
}

// Register loads the descriptor, replacing a loaded older copy.
func (r *Registrar) Register(ctx context.Context) error {
	if ok, _ := afero.Exists(r.fs, r.path); !ok {
		return errors.Newf(errors.ErrFileNotFound, "no launch agent at %s", r.path)
	}
	if err := r.bootout(ctx); err != nil {
		r.logger.Debug().Err(err).Msg("Agent was not loaded")
	}
	if _, err := r.launchctl(ctx, "bootstrap", r.domain(), r.path); err != nil {
		return errors.Wrapf(err, errors.ErrRegisterFailed, "cannot load %s", r.label)
	}
	r.logger.Info().Str("label", r.label).Msg("Launch agent loaded")
	return nil
}

// Unregister unloads the agent and removes its descriptor. Neither being
// present is not an error.
func (r *Registrar) Unregister(ctx context.Context) error {
	if err := r.bootout(ctx); err != nil {
		r.logger.Debug().Err(err).Msg("Agent was not loaded")
	}
	if err := r.fs.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot remove %s", r.path)
	}
	return nil
}

var (
	stateRe = regexp.MustCompile(`(?m)^\s*state = (.+)$`)
	runsRe  = regexp.MustCompile(`(?m)^\s*runs = (\d+)$`)
	exitRe  = regexp.MustCompile(`(?m)^\s*last exit code = (.+)$`)
)

// Status queries launchctl. An unknown service is reported as not
// loaded rather than as an error.
func (r *Registrar) Status(ctx context.Context) (Status, error) {
	st := Status{}
	st.Installed, _ = afero.Exists(r.fs, r.path)

	out, err := r.launchctl(ctx, "print", r.service())
	if err != nil {
		if errors.IsErrorCode(err, errors.ErrCommandFailed) {
			return st, nil
		}
		return st, errors.Wrapf(err, errors.ErrRegisterFailed, "cannot query %s", r.label)
	}

	st.Loaded = true
	if m := stateRe.FindStringSubmatch(out); m != nil {
		st.State = strings.TrimSpace(m[1])
	}
	if m := runsRe.FindStringSubmatch(out); m != nil {
		st.Runs, _ = strconv.Atoi(m[1])
	}
	if m := exitRe.FindStringSubmatch(out); m != nil {
		st.LastExitCode = strings.TrimSpace(m[1])
	}
	return st, nil
}

// Apply brings the OS in line with occs: the agent is written and loaded
// when any occurrence is enabled, and removed otherwise.
func (r *Registrar) Apply(ctx context.Context, shellCommand, logPath string, occs []Occurrence) error {
	a := Descriptor(r.label, shellCommand, logPath, occs)
	if len(a.StartCalendarInterval) == 0 {
		return r.Unregister(ctx)
	}
	if err := r.Write(a); err != nil {
		return err
	}
	return r.Register(ctx)
}

func (r *Registrar) bootout(ctx context.Context) error {
	_, err := r.launchctl(ctx, "bootout", r.service())
	return err
}

func (r *Registrar) launchctl(ctx context.Context, args ...string) (string, error) {
	logging.LogCommand("launchctl", args)
	res, err := r.runner.Run(ctx, command.Spec{Name: "launchctl", Args: args})
	return res.Stdout, err
}
