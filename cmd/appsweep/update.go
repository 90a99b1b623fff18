package appsweep

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/appsweep/pkg/config"
	"github.com/arthur-debert/appsweep/pkg/types"
)

const progressPoll = 150 * time.Millisecond

func newUpdateCmd() *cobra.Command {
	var (
		all    bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:     "update [bundle-id...]",
		Short:   MsgUpdateShort,
		Long:    MsgUpdateLong,
		Example: MsgUpdateExample,
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf(MsgErrNeedIDs)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()

			return withEnv(cmd, func(e *env) error {
				u, err := e.updater()
				if err != nil {
					return err
				}
				result, err := runScan(ctx, u, true)
				if err != nil {
					return err
				}

				targets, missing := matchTargets(flatten(result, ""), args, all)
				if len(missing) > 0 {
					return fmt.Errorf(MsgErrUnknownIDs, strings.Join(missing, ", "))
				}
				if len(targets) == 0 {
					fmt.Fprintln(out, MsgNothingSelected)
					return nil
				}

				if dryRun {
					for _, t := range targets {
						fmt.Fprintf(out, MsgWouldUpdate, displayName(t), t.App.Version, t.DisplayVersion(), t.Source)
					}
					fmt.Fprintln(out, MsgDryRunNotice)
					return nil
				}

				return applyAll(ctx, out, u, targets, e.cfg.Updates.SparkleApplyMode)
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, MsgFlagAll)
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, MsgFlagDryRun)

	return cmd
}

// matchTargets picks the updates named by ids, matching bundle identifier,
// synthetic id or cask token. With all every update is picked. Names that
// match nothing are returned as missing.
func matchTargets(updates []types.UpdateableApp, ids []string, all bool) (targets []types.UpdateableApp, missing []string) {
	if all {
		return updates, nil
	}
	seen := make(map[string]bool)
	for _, id := range ids {
		found := false
		for _, u := range updates {
			if u.ID != id && u.App.BundleID != id && u.CaskToken != id {
				continue
			}
			found = true
			if !seen[u.ID] {
				seen[u.ID] = true
				targets = append(targets, u)
			}
		}
		if !found {
			missing = append(missing, id)
		}
	}
	return targets, missing
}

func displayName(u types.UpdateableApp) string {
	if u.App.Name != "" {
		return u.App.Name
	}
	return u.ID
}

// applyAll runs the updates one after another and then waits for any
// queued in-process Sparkle installs.
func applyAll(ctx context.Context, out io.Writer, u *updater, targets []types.UpdateableApp, sparkleMode string) error {
	var (
		failed  int
		pending []types.UpdateableApp
	)

	for _, t := range targets {
		inProcess := t.Source == types.SourceSparkle && sparkleMode == config.SparkleApplyInProcess

		var stop func()
		if !inProcess && t.Source != types.SourceSparkle && isTerminal(os.Stderr) {
			stop = trackProgress(u, t)
		}
		err := u.UpdateApp(ctx, t.ID)
		if stop != nil {
			stop()
		}

		switch {
		case err != nil:
			failed++
			fmt.Fprintf(out, MsgUpdateFailed, displayName(t), err)
		case inProcess:
			pending = append(pending, t)
			fmt.Fprintf(out, MsgQueued, displayName(t))
		case t.Source == types.SourceSparkle:
			fmt.Fprintf(out, MsgHandedOff, displayName(t))
		default:
			fmt.Fprintf(out, MsgUpdated, displayName(t), t.DisplayVersion())
		}
	}

	if len(pending) > 0 {
		u.queue.Wait()
		for _, t := range pending {
			if cur, ok := u.Get(t.ID); ok && cur.Status.State == types.StatusFailed {
				failed++
				fmt.Fprintf(out, MsgUpdateFailed, displayName(t), cur.Status.FailureMessage)
				continue
			}
			fmt.Fprintf(out, MsgUpdated, displayName(t), t.DisplayVersion())
		}
	}

	if failed > 0 {
		return fmt.Errorf(MsgErrUpdateFailed, failed)
	}
	return nil
}

// trackProgress draws a bar for t on stderr, fed by polling the manager.
// The returned func stops polling and clears the bar.
func trackProgress(u *updater, t types.UpdateableApp) func() {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("    "+displayName(t)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(progressPoll)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				cur, ok := u.Get(t.ID)
				if !ok {
					_ = bar.Set(100)
					continue
				}
				_ = bar.Set(int(cur.Progress * 100))
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		_ = bar.Finish()
	}
}
