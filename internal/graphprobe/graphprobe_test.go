package graphprobe

import (
	"encoding/json"
	"testing"
)

const fixtureMetadata = `{
  "packages": [
    {"name": "root", "version": "0.1.0", "source": null},
    {"name": "libA", "version": "1.2.0", "source": "registry+https://github.com/rust-lang/crates.io-index"},
    {"name": "libB", "version": "1.5.0", "source": "registry+https://github.com/rust-lang/crates.io-index"}
  ],
  "resolve": {
    "root": "root 0.1.0 ()",
    "nodes": [
      {
        "id": "root 0.1.0 ()",
        "deps": [{"name": "libA", "req": "^1"}]
      },
      {
        "id": "libA 1.2.0 (registry+https://github.com/rust-lang/crates.io-index)",
        "deps": [{"name": "libB", "req": "=1.5.0"}]
      },
      {
        "id": "libB 1.5.0 (registry+https://github.com/rust-lang/crates.io-index)",
        "deps": []
      }
    ]
  }
}`

func TestParseGraph(t *testing.T) {
	var doc metadataDoc
	if err := json.Unmarshal([]byte(fixtureMetadata), &doc); err != nil {
		t.Fatal(err)
	}

	g, err := parseGraph(doc)
	if err != nil {
		t.Fatal(err)
	}

	if len(g.Nodes) != 3 {
		t.Fatalf("want 3 nodes, got %d", len(g.Nodes))
	}

	libA, ok := g.NodeByName("libA")
	if !ok {
		t.Fatal("libA not found")
	}
	if libA.ID.Source != "registry+https://github.com/rust-lang/crates.io-index" {
		t.Errorf("unexpected source: %s", libA.ID.Source)
	}

	reqs := g.RequirementsOn("libB")
	if len(reqs) != 1 || reqs[0].Expression != "=1.5.0" {
		t.Fatalf("want one strict requirement on libB, got %v", reqs)
	}
	if !reqs[0].Strict() {
		t.Error("libB's requirement should be strict")
	}
}

const fixtureMultiMemberMetadata = `{
  "packages": [
    {"name": "memberA", "version": "0.1.0", "source": null},
    {"name": "memberB", "version": "0.1.0", "source": null},
    {"name": "libA", "version": "1.2.0", "source": "registry+https://github.com/rust-lang/crates.io-index"}
  ],
  "workspace_members": ["memberA 0.1.0 ()", "memberB 0.1.0 ()"],
  "resolve": {
    "root": null,
    "nodes": [
      {
        "id": "memberA 0.1.0 ()",
        "deps": [{"name": "libA", "req": "^1"}]
      },
      {
        "id": "memberB 0.1.0 ()",
        "deps": [{"name": "libA", "req": "^1"}]
      },
      {
        "id": "libA 1.2.0 (registry+https://github.com/rust-lang/crates.io-index)",
        "deps": []
      }
    ]
  }
}`

func TestParseGraphMultiMemberWorkspace(t *testing.T) {
	var doc metadataDoc
	if err := json.Unmarshal([]byte(fixtureMultiMemberMetadata), &doc); err != nil {
		t.Fatal(err)
	}

	g, err := parseGraph(doc)
	if err != nil {
		t.Fatal(err)
	}

	memberA, ok := g.NodeByName("memberA")
	if !ok || !memberA.IsRoot {
		t.Fatalf("want memberA to be a root, got %+v (found=%v)", memberA, ok)
	}
	memberB, ok := g.NodeByName("memberB")
	if !ok || !memberB.IsRoot {
		t.Fatalf("want memberB to be a root, got %+v (found=%v)", memberB, ok)
	}
	libA, ok := g.NodeByName("libA")
	if !ok || libA.IsRoot {
		t.Fatalf("want libA not to be a root, got %+v (found=%v)", libA, ok)
	}
}

func TestCanonicalizeSource(t *testing.T) {
	cases := map[string]string{
		"":                              "path+local",
		"https://index.crates.io/":      "registry+https://index.crates.io",
		"sparse+https://index.crates.io": "sparse+https://index.crates.io",
	}
	for in, want := range cases {
		if got := canonicalize(in); got != want {
			t.Errorf("canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}
