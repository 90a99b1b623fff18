package appsweep

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/appsweep/internal/version"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	// Initialize custom template formatting functions
	initTemplateFormatting()

	var (
		verbosity  int
		configPath string
		overrides  []string
	)

	rootCmd := &cobra.Command{
		Use:     "appsweep",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			setupColor(os.Stdout)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf("no command specified")
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	// Global flags
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", MsgFlagConfig)
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, MsgFlagSet)

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "COMMANDS:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "misc",
		Title: "MISC:",
	})

	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newAdoptCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newManCmd())

	return rootCmd
}

// withEnv loads the environment for cmd, runs fn and releases whatever fn
// built.
func withEnv(cmd *cobra.Command, fn func(*env) error) error {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	overrides, _ := cmd.Root().PersistentFlags().GetStringArray("set")
	e, err := loadEnv(configPath, overrides)
	if err != nil {
		return err
	}
	defer e.close()
	return fn(e)
}
