// Package config handles configuration management for appsweep.
// Configuration is layered with koanf: embedded TOML defaults, then the
// user's config.toml, then APPSWEEP_<SECTION>_<KEY> environment variables.
// The result is decoded into a typed Config.
package config
