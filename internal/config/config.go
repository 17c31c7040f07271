// Package config loads the enumerated configuration of SPEC_FULL.md
// §6 from environment then file, environment taking precedence.
//
// Grounded on
// ipiton-alert-history-service/go-app/internal/config/config.go's
// viper.AutomaticEnv()+SetEnvKeyReplacer+SetConfigFile+Unmarshal+
// Validate() pattern; the teacher's own internal/cli.Config (a flat,
// hand-rolled JSON file with no env merging) is too thin for §6's
// "environment first, then file" precedence rule.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dertin/cargo-cooldown/internal/cderrors"
	"github.com/dertin/cargo-cooldown/internal/cooldown"
)

const envPrefix = "CARGO_COOLDOWN"

// Raw is the unmarshal target for the enumerated keys of §6.
type Raw struct {
	CooldownMinutes int64  `mapstructure:"cooldown_minutes"`
	Mode            string `mapstructure:"mode"`
	AllowlistPath   string `mapstructure:"allowlist_path"`
	TTLSeconds      int64  `mapstructure:"ttl_seconds"`
	CacheDir        string `mapstructure:"cache_dir"`
	OfflineOK       bool   `mapstructure:"offline_ok"`
	HTTPRetries     int    `mapstructure:"http_retries"`
	Verbose         bool   `mapstructure:"verbose"`
	RegistryAPI     string `mapstructure:"registry_api"`
	RegistryIndex   string `mapstructure:"registry_index"`
}

// Load resolves configuration from environment, then workspaceDir's
// config file, then the user-home config file, applying §6's defaults
// and validating the result.
func Load(workspaceDir string) (Raw, error) {
	v := viper.New()

	v.SetDefault("cooldown_minutes", 0)
	v.SetDefault("mode", "enforce")
	v.SetDefault("allowlist_path", "cooldown-allowlist.toml")
	v.SetDefault("ttl_seconds", 86400)
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("offline_ok", false)
	v.SetDefault("http_retries", 2)
	v.SetDefault("verbose", false)
	v.SetDefault("registry_api", "https://crates.io/api/v1/")
	v.SetDefault("registry_index", "registry+https://github.com/rust-lang/crates.io-index,sparse+https://index.crates.io/")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigType("toml")
		v.SetConfigFile(filepath.Join(home, ".cargo-cooldown.toml"))
		_ = v.MergeInConfig() // optional: a missing user file is not an error
	}

	workspaceFile := filepath.Join(workspaceDir, "cooldown.toml")
	if _, err := os.Stat(workspaceFile); err == nil {
		v.SetConfigFile(workspaceFile)
		if err := v.MergeInConfig(); err != nil {
			return Raw{}, cderrors.ConfigError(
				fmt.Sprintf("could not read workspace config: %v", err),
				map[string]string{"path": workspaceFile},
			)
		}
	}

	var raw Raw
	if err := v.Unmarshal(&raw); err != nil {
		return Raw{}, cderrors.ConfigError(fmt.Sprintf("could not unmarshal configuration: %v", err), nil)
	}

	if err := raw.Validate(); err != nil {
		return Raw{}, err
	}
	return raw, nil
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "cargo-cooldown")
	}
	return filepath.Join(os.TempDir(), "cargo-cooldown")
}

// Validate enforces the http_retries clamp and mode enumeration (§6,
// §8 "http_retries > 8 is clamped to 8").
func (r *Raw) Validate() error {
	switch cooldown.Mode(r.Mode) {
	case cooldown.ModeEnforce, cooldown.ModeWarn, cooldown.ModeOff:
	default:
		return cderrors.ConfigError(fmt.Sprintf("invalid mode %q", r.Mode), nil)
	}
	if r.HTTPRetries < 0 {
		r.HTTPRetries = 0
	}
	if r.HTTPRetries > 8 {
		r.HTTPRetries = 8
	}
	if r.CooldownMinutes < 0 {
		return cderrors.ConfigError("cooldown_minutes must be non-negative", nil)
	}
	return nil
}

// ToCooldownConfig builds the immutable cooldown.Config the Resolver
// Loop holds for the run (§9 "Global mutable configuration... is
// collected once"), merging in the parsed allowlist.
func (r Raw) ToCooldownConfig(allow map[string]cooldown.AllowlistOverride) cooldown.Config {
	guarded := make(map[string]bool)
	for _, raw := range strings.Split(r.RegistryIndex, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		guarded[cooldown.GuardedSource(raw)] = true
	}
	return cooldown.Config{
		BaseWindow: time.Duration(r.CooldownMinutes) * time.Minute,
		Mode:       cooldown.Mode(r.Mode),
		Allowlist:  allow,
		Guarded:    guarded,
	}
}
