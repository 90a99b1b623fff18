package appsweep

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/types"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "history",
		Short:   MsgHistoryShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()

			return withEnv(cmd, func(e *env) error {
				store, err := e.history()
				if err != nil {
					return err
				}
				if store == nil {
					fmt.Fprintln(out, MsgHistoryDisabled)
					return nil
				}

				scan, err := store.LastScan(ctx)
				switch {
				case err == nil:
					fmt.Fprintf(out, "Last scan %s: %d apps, %d homebrew, %d appstore, %d sparkle (%s)\n\n",
						scan.StartedAt.Local().Format("2006-01-02 15:04"),
						scan.Apps,
						scan.Counts[types.SourceHomebrew],
						scan.Counts[types.SourceAppStore],
						scan.Counts[types.SourceSparkle],
						scan.Duration.Round(time.Millisecond))
				case !errors.IsErrorCode(err, errors.ErrNotFound):
					return err
				}

				entries, err := store.Recent(ctx, limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, MsgHistoryEmpty)
					return nil
				}
				printHistory(out, entries)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, MsgFlagLimit)

	return cmd
}
