// Package history keeps a local record of applied updates and scans in a
// SQLite database under the data directory.
//
// The schema is versioned with embedded migrations that run on Open. Rows
// are append-only; nothing in appsweep edits or deletes history.
package history
