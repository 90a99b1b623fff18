package appsweep

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/appsweep/pkg/types"
)

func newScanCmd() *cobra.Command {
	var (
		source string
		format string
		notes  bool
	)

	cmd := &cobra.Command{
		Use:     "scan",
		Short:   MsgScanShort,
		Long:    MsgScanLong,
		Example: MsgScanExample,
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			var only types.Source
			if source != "" {
				src, err := types.ParseSource(source)
				if err != nil {
					return err
				}
				only = src
			}

			return withEnv(cmd, func(e *env) error {
				u, err := e.updater()
				if err != nil {
					return err
				}
				result, err := runScan(cmd.Context(), u, format == FormatTable)
				if err != nil {
					return err
				}
				return printUpdates(cmd.OutOrStdout(), flatten(result, only), format, notes)
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", MsgFlagSource)
	cmd.Flags().StringVarP(&format, "format", "f", FormatTable, MsgFlagFormat)
	cmd.Flags().BoolVar(&notes, "notes", false, MsgFlagNotes)

	return cmd
}

// runScan scans with a spinner on interactive terminals.
func runScan(ctx context.Context, u *updater, interactive bool) (map[types.Source][]types.UpdateableApp, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !interactive || !isTerminal(os.Stderr) {
		return u.Scan(ctx)
	}

	started := time.Now()
	spinner, _ := pterm.DefaultSpinner.WithWriter(os.Stderr).WithRemoveWhenDone(true).Start(MsgScanning)
	result, err := u.Scan(ctx)
	if spinner != nil {
		if err != nil {
			spinner.Fail(err.Error())
		} else {
			spinner.Success(fmt.Sprintf(MsgScanDone, time.Since(started).Round(100*time.Millisecond)))
		}
	}
	return result, err
}
