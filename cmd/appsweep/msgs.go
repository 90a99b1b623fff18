package appsweep

import (
	_ "embed"
	"strings"
)

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort            = "Find and apply updates for macOS apps"
	MsgScanShort            = "List available updates"
	MsgUpdateShort          = "Apply updates"
	MsgAdoptShort           = "Put an app under Homebrew management"
	MsgScheduleShort        = "Manage scheduled Homebrew maintenance"
	MsgScheduleAddShort     = "Add a weekly run time"
	MsgScheduleListShort    = "List run times"
	MsgScheduleRemoveShort  = "Remove a run time"
	MsgScheduleEnableShort  = "Enable a run time"
	MsgScheduleDisableShort = "Disable a run time"
	MsgScheduleStatusShort  = "Show the launchd agent status"
	MsgHistoryShort         = "Show applied updates"
	MsgConfigShort          = "Inspect configuration"
	MsgConfigShowShort      = "Print the effective configuration"
	MsgVersionShort         = "Print version information"
	MsgManShort             = "Generate man pages"

	// Status messages
	MsgNoUpdates         = "Everything is up to date."
	MsgUpdatesFound      = "%d update(s) available\n"
	MsgScanning          = "Scanning installed apps"
	MsgScanDone          = "Scan finished in %s"
	MsgNothingSelected   = "No matching updates to apply."
	MsgDryRunNotice      = "\nDRY RUN MODE - No changes were made"
	MsgWouldUpdate       = "  would update %s %s → %s (%s)\n"
	MsgUpdated           = "✓ %s updated to %s\n"
	MsgHandedOff         = "↗ %s opened to run its own updater\n"
	MsgQueued            = "… %s queued for in-process update\n"
	MsgUpdateFailed      = "✗ %s: %s\n"
	MsgNoCaskMatches     = "No cask matches %s.\n"
	MsgAdoptHint         = "\nRun again with --token <token> to adopt.\n"
	MsgAdopted           = "✓ %s is now managed by the %s cask\n"
	MsgVersionMismatch   = "cask %s installs %s but %s is installed; brew will replace the app on adopt"
	MsgScheduleEmpty     = "No scheduled runs."
	MsgScheduleAdded     = "Added %s (%s)\n"
	MsgScheduleRemoved   = "Removed %s\n"
	MsgScheduleToggled   = "%s %s\n"
	MsgAgentNotInstalled = "Launch agent not installed."
	MsgHistoryEmpty      = "No updates recorded yet."
	MsgHistoryDisabled   = "History is disabled (history.enabled = false)."

	// Error messages
	MsgErrLoadConfig   = "failed to load configuration: %w"
	MsgErrUnknownIDs   = "no update available for: %s"
	MsgErrFormat       = "unknown format %q (want table, json or yaml)"
	MsgErrNeedIDs      = "name bundle identifiers to update, or pass --all"
	MsgErrUpdateFailed = "%d update(s) failed"

	// Flag descriptions
	MsgFlagVerbose = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagConfig  = "Config file (default is $XDG_CONFIG_HOME/appsweep/config.toml)"
	MsgFlagSet     = "Override a config key, e.g. --set updates.include_prereleases=true"
	MsgFlagSource  = "Only this source (homebrew, appstore, sparkle)"
	MsgFlagFormat  = "Output format: table, json or yaml"
	MsgFlagNotes   = "Show release notes"
	MsgFlagAll     = "Apply every available update"
	MsgFlagDryRun  = "Show what would be updated without changing anything"
	MsgFlagToken   = "Cask token to adopt the app with"
	MsgFlagRefresh = "Download the cask catalog even if the cache is fresh"
	MsgFlagDay     = "Weekday (sun-sat or 0-6)"
	MsgFlagAt      = "Time of day, HH:MM"
	MsgFlagLimit   = "Number of entries to show (0 for all)"

	// Version output
	MsgVersionFormat = "appsweep version %s\n"
	MsgCommitFormat  = "Commit: %s\n"
	MsgBuiltFormat   = "Built:  %s\n"
)

// Long messages from embedded files
var (
	//go:embed msgs/root-long.txt
	msgRootLongRaw string
	MsgRootLong    = strings.TrimSpace(msgRootLongRaw)

	//go:embed msgs/scan-long.txt
	msgScanLongRaw string
	MsgScanLong    = strings.TrimSpace(msgScanLongRaw)

	//go:embed msgs/scan-example.txt
	msgScanExampleRaw string
	MsgScanExample    = strings.TrimRight(msgScanExampleRaw, "\n")

	//go:embed msgs/update-long.txt
	msgUpdateLongRaw string
	MsgUpdateLong    = strings.TrimSpace(msgUpdateLongRaw)

	//go:embed msgs/update-example.txt
	msgUpdateExampleRaw string
	MsgUpdateExample    = strings.TrimRight(msgUpdateExampleRaw, "\n")

	//go:embed msgs/adopt-long.txt
	msgAdoptLongRaw string
	MsgAdoptLong    = strings.TrimSpace(msgAdoptLongRaw)

	//go:embed msgs/adopt-example.txt
	msgAdoptExampleRaw string
	MsgAdoptExample    = strings.TrimRight(msgAdoptExampleRaw, "\n")

	//go:embed msgs/schedule-long.txt
	msgScheduleLongRaw string
	MsgScheduleLong    = strings.TrimSpace(msgScheduleLongRaw)

	//go:embed msgs/schedule-example.txt
	msgScheduleExampleRaw string
	MsgScheduleExample    = strings.TrimRight(msgScheduleExampleRaw, "\n")
)

// MsgUsageTemplate lists commands by group.
const MsgUsageTemplate = `{{boldUpper "Usage"}}:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

{{boldUpper "Aliases"}}:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

{{boldUpper "Examples"}}:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

{{boldUpper "Commands"}}:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{bold .Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

{{boldUpper "Flags"}}:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

{{boldUpper "Global Flags"}}:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
