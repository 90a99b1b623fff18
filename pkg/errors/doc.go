// Package errors provides the structured error type used across appsweep.
//
// Errors carry a stable ErrorCode so callers (and tests) can branch on the
// cause without matching message text. Checkers never surface these across
// their gather boundary; appliers return them to the manager, which turns
// them into a failed status on the affected update.
package errors
