package appsweep

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/appsweep/pkg/schedule"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Short:   MsgScheduleShort,
		Long:    MsgScheduleLong,
		Example: MsgScheduleExample,
		GroupID: "misc",
	}

	cmd.AddCommand(newScheduleAddCmd())
	cmd.AddCommand(newScheduleListCmd())
	cmd.AddCommand(newScheduleRemoveCmd())
	cmd.AddCommand(newScheduleToggleCmd("enable", MsgScheduleEnableShort, true))
	cmd.AddCommand(newScheduleToggleCmd("disable", MsgScheduleDisableShort, false))
	cmd.AddCommand(newScheduleStatusCmd())

	return cmd
}

// applySchedule pushes the stored occurrences to launchd.
func applySchedule(ctx context.Context, e *env, occs []schedule.Occurrence) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return e.registrar().Apply(ctx, e.maintenanceCommand(), e.scheduleLogPath(), occs)
}

func newScheduleAddCmd() *cobra.Command {
	var day, at string

	cmd := &cobra.Command{
		Use:   "add",
		Short: MsgScheduleAddShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			weekday, err := schedule.ParseWeekday(day)
			if err != nil {
				return err
			}
			hour, minute, err := schedule.ParseClock(at)
			if err != nil {
				return err
			}
			occ, err := schedule.NewOccurrence(weekday, hour, minute)
			if err != nil {
				return err
			}

			return withEnv(cmd, func(e *env) error {
				occs, err := e.scheduleStore().Add(occ)
				if err != nil {
					return err
				}
				if err := applySchedule(cmd.Context(), e, occs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), MsgScheduleAdded, occ, occ.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&day, "day", "d", "", MsgFlagDay)
	cmd.Flags().StringVar(&at, "at", "", MsgFlagAt)
	_ = cmd.MarkFlagRequired("day")
	_ = cmd.MarkFlagRequired("at")

	return cmd
}

func newScheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: MsgScheduleListShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env) error {
				occs, err := e.scheduleStore().Load()
				if err != nil {
					return err
				}
				if len(occs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), MsgScheduleEmpty)
					return nil
				}
				printOccurrences(cmd.OutOrStdout(), occs)
				return nil
			})
		},
	}
}

func newScheduleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: MsgScheduleRemoveShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env) error {
				occs, err := e.scheduleStore().Remove(args[0])
				if err != nil {
					return err
				}
				if err := applySchedule(cmd.Context(), e, occs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), MsgScheduleRemoved, args[0])
				return nil
			})
		},
	}
}

func newScheduleToggleCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(e *env) error {
				occs, err := e.scheduleStore().SetEnabled(args[0], enabled)
				if err != nil {
					return err
				}
				if err := applySchedule(cmd.Context(), e, occs); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), MsgScheduleToggled, use+"d", args[0])
				return nil
			})
		},
	}
}

func newScheduleStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: MsgScheduleStatusShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()

			return withEnv(cmd, func(e *env) error {
				r := e.registrar()
				st, err := r.Status(ctx)
				if err != nil {
					return err
				}
				if !st.Installed && !st.Loaded {
					fmt.Fprintln(out, MsgAgentNotInstalled)
					return nil
				}

				t := newTable("Agent", "Value")
				t.Row("descriptor", r.Path())
				t.Row("installed", yesNo(st.Installed))
				t.Row("loaded", yesNo(st.Loaded))
				if st.State != "" {
					t.Row("state", st.State)
				}
				t.Row("runs", fmt.Sprint(st.Runs))
				if st.LastExitCode != "" {
					t.Row("last exit code", st.LastExitCode)
				}
				t.Row("log", e.scheduleLogPath())
				fmt.Fprintln(out, t.Render())
				return nil
			})
		},
	}
}
