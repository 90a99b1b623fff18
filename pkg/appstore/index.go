package appstore

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/appsweep/pkg/command"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

const adamIDAttribute = "kMDItemAppStoreAdamID"

// SpotlightIndex maps installed app paths to store product ids.
type SpotlightIndex struct {
	runner  command.Runner
	dirs    []string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewSpotlightIndex searches dirs, giving up after timeout.
func NewSpotlightIndex(runner command.Runner, dirs []string, timeout time.Duration) *SpotlightIndex {
	return &SpotlightIndex{
		runner:  runner,
		dirs:    dirs,
		timeout: timeout,
		logger:  logging.GetLogger("appstore.index"),
	}
}

type indexResult struct {
	ids map[string]string
	err error
}

// ProductIDs returns path → product id. The query runs in the background
// and races a timer; when the timer wins the partial work is discarded and
// an ErrCanceled error is returned.
func (s *SpotlightIndex) ProductIDs(ctx context.Context) (map[string]string, error) {
	qctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan indexResult, 1)
	go func() {
		ids, err := s.query(qctx)
		done <- indexResult{ids: ids, err: err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.ids, res.err
	case <-timer.C:
		s.logger.Warn().Dur("timeout", s.timeout).Msg("Spotlight query timed out")
		return nil, errors.Newf(errors.ErrCanceled, "spotlight query exceeded %s", s.timeout)
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrCanceled, "spotlight query canceled")
	}
}

func (s *SpotlightIndex) query(ctx context.Context) (map[string]string, error) {
	args := []string{}
	for _, d := range s.dirs {
		args = append(args, "-onlyin", d)
	}
	args = append(args, adamIDAttribute+" > 0")

	out, err := command.Output(ctx, s.runner, "mdfind", args...)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if p := strings.TrimSpace(line); strings.HasSuffix(p, ".app") {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return map[string]string{}, nil
	}

	// -raw separates the values of several files with NUL
	res, err := s.runner.Run(ctx, command.Spec{
		Name: "mdls",
		Args: append([]string{"-name", adamIDAttribute, "-raw"}, paths...),
	})
	if err != nil {
		return nil, err
	}
	values := strings.Split(res.Stdout, "\x00")

	ids := make(map[string]string, len(paths))
	for i, p := range paths {
		if i >= len(values) {
			break
		}
		v := strings.TrimSpace(values[i])
		if v == "" || v == "(null)" || v == "0" {
			continue
		}
		ids[p] = v
	}
	return ids, nil
}
