package appsweep

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/appsweep/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, MsgVersionFormat, version.Version)
			fmt.Fprintf(out, MsgCommitFormat, version.Commit)
			fmt.Fprintf(out, MsgBuiltFormat, version.Date)
		},
	}
}
