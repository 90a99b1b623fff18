// Package homebrew detects updates for apps installed through Homebrew
// casks and formulae, applies them with brew, and matches unmanaged apps
// to casks that could adopt them.
//
// Installed packages are read straight from the prefix (Caskroom and
// Cellar) instead of asking brew, and available versions come from the
// formulae.brew.sh JSON API with the tap's Ruby file as fallback. Both are
// much faster than "brew outdated" at the cost of trusting brew's on-disk
// records.
package homebrew
