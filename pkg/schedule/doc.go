// Package schedule manages unattended Homebrew maintenance runs.
//
// Occurrences are weekly calendar slots (weekday, hour, minute) kept in a
// small YAML file. The enabled ones become the StartCalendarInterval of a
// per-user launchd agent that runs the maintenance command. The Registrar
// covers the four operations the OS side needs: write the agent plist,
// bootstrap it, print its status and boot it out.
package schedule
