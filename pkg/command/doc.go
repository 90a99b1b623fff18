// Package command runs external tools (brew, mas, mdfind, ditto, launchctl)
// and privileged shell scripts.
//
// Output is drained on dedicated goroutines while a separate goroutine
// waits for the process, so a tool that fills its stderr pipe can never
// deadlock the caller. Line callbacks let appliers turn tool output into
// progress reports.
package command
