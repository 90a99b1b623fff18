package appsweep

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/appsweep/pkg/bundle"
	"github.com/arthur-debert/appsweep/pkg/homebrew"
	"github.com/arthur-debert/appsweep/pkg/paths"
)

func newAdoptCmd() *cobra.Command {
	var (
		token   string
		refresh bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:     "adopt <app-path>",
		Short:   MsgAdoptShort,
		Long:    MsgAdoptLong,
		Example: MsgAdoptExample,
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()

			return withEnv(cmd, func(e *env) error {
				app, err := bundle.NewReader(e.fs).Read(paths.ExpandHome(args[0]))
				if err != nil {
					return err
				}
				casks, err := e.catalog().Casks(ctx, refresh)
				if err != nil {
					return err
				}

				if token == "" {
					matches := homebrew.FindMatches(app, casks)
					if len(matches) == 0 {
						fmt.Fprintf(out, MsgNoCaskMatches, app.Name)
						return nil
					}
					printAdoptable(out, matches)
					fmt.Fprint(out, MsgAdoptHint)
					return nil
				}

				cask, err := homebrew.ValidateManual(app, token, casks)
				if err != nil {
					return err
				}
				if !cask.IsVersionCompatible {
					fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf(MsgVersionMismatch, cask.Token, cask.Version, app.Version)))
				}
				if dryRun {
					printAdoptable(out, []homebrew.AdoptableCask{cask})
					fmt.Fprintln(out, MsgDryRunNotice)
					return nil
				}

				err = e.brew().Adopt(ctx, cask.Token, func(line string) {
					e.logger.Debug().Str("token", cask.Token).Str("line", line).Msg("brew")
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, MsgAdopted, app.Name, cask.Token)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", MsgFlagToken)
	cmd.Flags().BoolVar(&refresh, "refresh", false, MsgFlagRefresh)
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, MsgFlagDryRun)

	return cmd
}
