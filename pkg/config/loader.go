package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	apperrors "github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/logging"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "APPSWEEP_"

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Load builds the configuration from embedded defaults, the user file at
// path (skipped when missing) and environment variables, in that order.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load with dotted keys ("updates.include_formulae")
// applied on top of everything else.
func LoadWithOverrides(path string, overrides map[string]interface{}) (*Config, error) {
	k, err := loadKoanf(path)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrConfigLoad, "failed to apply overrides")
		}
	}
	return unmarshal(k)
}

// ParseOverrides turns key=value pairs into an override map.
func ParseOverrides(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "override %q is not key=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// Defaults returns the embedded defaults only.
func Defaults() *Config {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		panic(fmt.Sprintf("embedded defaults are invalid: %v", err))
	}
	cfg, err := unmarshal(k)
	if err != nil {
		panic(fmt.Sprintf("embedded defaults are invalid: %v", err))
	}
	return cfg
}

func loadKoanf(path string) (*koanf.Koanf, error) {
	logger := logging.GetLogger("config")
	k := koanf.New(".")

	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigLoad, "failed to load defaults")
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, apperrors.Wrapf(err, apperrors.ErrConfigParse, "failed to load config from %s", path)
			}
			logger.Debug().Str("path", path).Msg("Loaded user config")
		}
	}

	// APPSWEEP_UPDATES_INCLUDE_PRERELEASES -> updates.include_prereleases
	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigLoad, "failed to load env vars")
	}

	return k, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, key, found := strings.Cut(s, "_")
	if !found {
		return s
	}
	return section + "." + key
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigParse, "failed to unmarshal configuration")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enum-like fields and clamps limits.
func Validate(cfg *Config) error {
	switch cfg.Updates.SparkleCheckMode {
	case SparkleCheckFull, SparkleCheckLight:
	default:
		return apperrors.Newf(apperrors.ErrConfigValid, "invalid sparkle_check_mode %q", cfg.Updates.SparkleCheckMode)
	}
	switch cfg.Updates.SparkleApplyMode {
	case SparkleApplyOpen, SparkleApplyInProcess:
	default:
		return apperrors.Newf(apperrors.ErrConfigValid, "invalid sparkle_apply_mode %q", cfg.Updates.SparkleApplyMode)
	}
	switch cfg.Sideload.Privilege {
	case "sudo", "applescript", "none":
	default:
		return apperrors.Newf(apperrors.ErrConfigValid, "invalid sideload privilege %q", cfg.Sideload.Privilege)
	}

	if cfg.Sparkle.QueueLimit <= 0 || cfg.Sparkle.QueueLimit > MaxSparkleOperations {
		cfg.Sparkle.QueueLimit = MaxSparkleOperations
	}
	if cfg.Homebrew.APIConcurrency <= 0 {
		cfg.Homebrew.APIConcurrency = 1
	}
	return nil
}
