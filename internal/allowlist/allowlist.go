// Package allowlist parses the TOML allowlist file described in
// SPEC_FULL.md §13, grounded on
// matzehuels-stacktower/pkg/deps/rust/cargo.go's cargoFile unmarshal
// pattern: a tight single-struct mapping over BurntSushi/toml, with no
// permissive "extra fields ignored" behavior.
package allowlist

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dertin/cargo-cooldown/internal/cderrors"
	"github.com/dertin/cargo-cooldown/internal/cooldown"
)

// entry is the raw TOML shape of one package's override table.
type entry struct {
	WindowMinutes int64  `toml:"window_minutes"`
	Pin           string `toml:"pin"`
	Wildcard      bool   `toml:"wildcard"`
}

// Load reads and parses the allowlist file at path into the
// name->override map §3's Cooldown configuration expects. A missing
// file is not an error: it yields an empty allowlist.
func Load(path string) (map[string]cooldown.AllowlistOverride, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]cooldown.AllowlistOverride{}, nil
	}

	var raw map[string]entry
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, cderrors.ConfigError(
			fmt.Sprintf("could not parse allowlist file: %v", err),
			map[string]string{"path": path},
		)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, cderrors.ConfigError(
			fmt.Sprintf("unrecognized allowlist keys: %v", undecoded),
			map[string]string{"path": path},
		)
	}

	out := make(map[string]cooldown.AllowlistOverride, len(raw))
	for name, e := range raw {
		set := 0
		if e.WindowMinutes > 0 {
			set++
		}
		if e.Pin != "" {
			set++
		}
		if e.Wildcard {
			set++
		}
		if set == 0 {
			return nil, cderrors.ConfigError(
				"allowlist entry specifies no override", map[string]string{"name": name},
			)
		}

		out[name] = cooldown.AllowlistOverride{
			Window:   time.Duration(e.WindowMinutes) * time.Minute,
			Pin:      e.Pin,
			Wildcard: e.Wildcard,
		}
	}
	return out, nil
}
