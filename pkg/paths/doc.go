// Package paths provides centralized path handling for appsweep.
// It follows the XDG Base Directory layout (via adrg/xdg) for config,
// cache, data and state, with APPSWEEP_* environment overrides, and
// knows the fixed macOS locations appsweep reads from.
package paths
