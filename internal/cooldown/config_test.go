package cooldown

import (
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
)

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.NewVersion(s)
	if err != nil {
		t.Fatalf("parse version %q: %v", s, err)
	}
	return v
}

func TestEffectiveWindow(t *testing.T) {
	cases := []struct {
		name     string
		base     time.Duration
		override map[string]AllowlistOverride
		pkg      string
		want     time.Duration
	}{
		{"no override", 24 * time.Hour, nil, "serde", 24 * time.Hour},
		{"shorter override", 24 * time.Hour, map[string]AllowlistOverride{"serde": {Window: time.Hour}}, "serde", time.Hour},
		{"override never lengthens", time.Hour, map[string]AllowlistOverride{"serde": {Window: 24 * time.Hour}}, "serde", time.Hour},
		{"zero override ignored", time.Hour, map[string]AllowlistOverride{"serde": {Window: 0}}, "serde", time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{BaseWindow: tc.base, Allowlist: tc.override}
			if got := cfg.EffectiveWindow(tc.pkg); got != tc.want {
				t.Errorf("EffectiveWindow(%q) = %v, want %v", tc.pkg, got, tc.want)
			}
		})
	}
}

func TestIsGuarded(t *testing.T) {
	guarded := map[string]bool{"registry+https://github.com/rust-lang/crates.io-index": true}

	t.Run("root is never guarded", func(t *testing.T) {
		n := Node{ID: Identity{Name: "root", Version: mustVersion(t, "1.0.0"), Source: "registry+https://github.com/rust-lang/crates.io-index"}, IsRoot: true}
		cfg := Config{Guarded: guarded}
		if cfg.IsGuarded(n) {
			t.Fatal("root must never be guarded")
		}
	})

	t.Run("non-guarded source", func(t *testing.T) {
		n := Node{ID: Identity{Name: "libA", Version: mustVersion(t, "1.0.0"), Source: "git+https://example.com/libA"}}
		cfg := Config{Guarded: guarded}
		if cfg.IsGuarded(n) {
			t.Fatal("non-guarded source must not be guarded")
		}
	})

	t.Run("wildcard exemption", func(t *testing.T) {
		n := Node{ID: Identity{Name: "libA", Version: mustVersion(t, "1.0.0"), Source: "registry+https://github.com/rust-lang/crates.io-index"}}
		cfg := Config{Guarded: guarded, Allowlist: map[string]AllowlistOverride{"libA": {Wildcard: true}}}
		if cfg.IsGuarded(n) {
			t.Fatal("wildcard-allowlisted package must not be guarded")
		}
	})

	t.Run("pin exemption matches only that version", func(t *testing.T) {
		cfg := Config{Guarded: guarded, Allowlist: map[string]AllowlistOverride{"libA": {Pin: "1.0.0"}}}
		pinned := Node{ID: Identity{Name: "libA", Version: mustVersion(t, "1.0.0"), Source: "registry+https://github.com/rust-lang/crates.io-index"}}
		other := Node{ID: Identity{Name: "libA", Version: mustVersion(t, "1.1.0"), Source: "registry+https://github.com/rust-lang/crates.io-index"}}
		if cfg.IsGuarded(pinned) {
			t.Fatal("pinned version must not be guarded")
		}
		if !cfg.IsGuarded(other) {
			t.Fatal("non-pinned version must remain guarded")
		}
	})
}

func TestGuardedSource(t *testing.T) {
	cases := map[string]string{
		"https://github.com/rust-lang/crates.io-index/": "registry+https://github.com/rust-lang/crates.io-index",
		"registry+https://index.crates.io/":              "registry+https://index.crates.io",
		"sparse+https://index.crates.io:443/":            "sparse+https://index.crates.io",
	}
	for in, want := range cases {
		if got := GuardedSource(in); got != want {
			t.Errorf("GuardedSource(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRequirementStrict(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"=1.2.3", true},
		{"^1.2.3", false},
		{">=1.0.0, <2.0.0", false},
		{"", false},
	}
	for _, tc := range cases {
		r := Requirement{Expression: tc.expr}
		if got := r.Strict(); got != tc.want {
			t.Errorf("Strict(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}
