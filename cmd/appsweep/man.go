package appsweep

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/arthur-debert/appsweep/internal/version"
	"github.com/arthur-debert/appsweep/pkg/errors"
)

// newManCmd writes one man page per command into a directory. It is
// hidden; packaging runs it.
func newManCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "man <dir>",
		Short:  MsgManShort,
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(args[0], 0755); err != nil {
				return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", args[0])
			}
			header := &doc.GenManHeader{
				Title:   "APPSWEEP",
				Section: "1",
				Source:  "appsweep " + version.Version,
				Manual:  "appsweep manual",
			}
			return doc.GenManTree(cmd.Root(), header, args[0])
		},
	}
}
