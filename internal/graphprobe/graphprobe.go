// Package graphprobe implements §4.3: invoking the package manager to
// obtain the fully resolved dependency graph, normalizing sources, and
// capturing parent->child requirements verbatim for later intersection.
package graphprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/dertin/cargo-cooldown/internal/cderrors"
	"github.com/dertin/cargo-cooldown/internal/cooldown"
	"github.com/dertin/cargo-cooldown/internal/procexec"
)

// Probe obtains graph snapshots from the package manager.
type Probe struct {
	WorkDir string
	Runner  *procexec.Runner
}

// New builds a Probe rooted at workDir, invoking "cargo" with
// deterministic, unprompted, uncolored output (§13).
func New(workDir string) *Probe {
	return &Probe{
		WorkDir: workDir,
		Runner: &procexec.Runner{
			Command: "cargo",
			Extra:   []string{"CARGO_TERM_COLOR=never", "CARGO_NET_OFFLINE=false"},
		},
	}
}

// metadataDoc mirrors the subset of `cargo metadata --format-version 1`
// this probe depends on.
type metadataDoc struct {
	Packages []struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		Source  string `json:"source"`
	} `json:"packages"`
	// WorkspaceMembers lists the package IDs of every workspace member
	// (§3 "rooted at the workspace members"). `resolve.root` is only
	// ever non-null for a single-package workspace; a genuine
	// multi-member workspace reports `null` there and enumerates
	// members here instead.
	WorkspaceMembers []string `json:"workspace_members"`
	Resolve          struct {
		Root  string `json:"root"`
		Nodes []struct {
			ID   string `json:"id"`
			Deps []struct {
				PkgID string `json:"pkg,omitempty"`
				Name  string `json:"name"`
				Req   string `json:"req"`
			} `json:"deps"`
		} `json:"nodes"`
	} `json:"resolve"`
}

// Snapshot obtains the current resolved graph, generating a lockfile
// first if one is absent (§4.3 Contract).
func (p *Probe) Snapshot(ctx context.Context) (*cooldown.Graph, error) {
	if _, err := os.Stat(filepath.Join(p.WorkDir, "Cargo.lock")); os.IsNotExist(err) {
		if err := p.generateLockfile(ctx); err != nil {
			return nil, err
		}
	}

	res, err := p.Runner.Run(ctx, p.WorkDir, "metadata", "--format-version", "1", "--locked")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, cderrors.SubprocessError(
			fmt.Sprintf("cargo metadata exited %d: %s", res.ExitCode, string(res.Stderr)),
			nil,
		)
	}

	var doc metadataDoc
	if err := json.Unmarshal(res.Stdout, &doc); err != nil {
		return nil, cderrors.SubprocessError("could not parse cargo metadata output", nil)
	}
	return parseGraph(doc)
}

func (p *Probe) generateLockfile(ctx context.Context) error {
	res, err := p.Runner.Run(ctx, p.WorkDir, "generate-lockfile")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return cderrors.SubprocessError(
			fmt.Sprintf("cargo generate-lockfile exited %d: %s", res.ExitCode, string(res.Stderr)),
			nil,
		)
	}
	return nil
}

// canonicalize normalizes a bare source URL the way §4.3 Normalization
// requires: a registry scheme tag, no trailing slash, no default port.
func canonicalize(source string) string {
	if source == "" {
		return "path+local"
	}
	return cooldown.GuardedSource(source)
}

func parseGraph(doc metadataDoc) (*cooldown.Graph, error) {
	type pkgMeta struct {
		version *semver.Version
		source  string
	}
	byID := make(map[string]pkgMeta)
	nameByID := make(map[string]string)

	for _, pkg := range doc.Packages {
		v, err := semver.NewVersion(pkg.Version)
		if err != nil {
			continue
		}
		id := pkgID(pkg.Name, pkg.Version, pkg.Source)
		byID[id] = pkgMeta{version: v, source: canonicalize(pkg.Source)}
		nameByID[id] = pkg.Name
	}

	isRoot := make(map[string]bool, len(doc.WorkspaceMembers))
	for _, id := range doc.WorkspaceMembers {
		isRoot[id] = true
	}

	var nodes []cooldown.Node
	for _, n := range doc.Resolve.Nodes {
		meta, ok := byID[n.ID]
		if !ok {
			continue
		}
		name := nameByID[n.ID]
		node := cooldown.Node{
			ID: cooldown.Identity{
				Name:    name,
				Version: meta.version,
				Source:  meta.source,
			},
			// Fall back to resolve.root for the single-package case,
			// where cargo omits workspace_members entirely.
			IsRoot: isRoot[n.ID] || n.ID == doc.Resolve.Root,
		}
		nodes = append(nodes, node)
	}

	// Second pass: attach requirements now that every node identity is
	// known, since a dep's requirement is observed on the edge, not the
	// node itself.
	for _, n := range doc.Resolve.Nodes {
		parentMeta, ok := byID[n.ID]
		if !ok {
			continue
		}
		parentIdentity := cooldown.Identity{
			Name:    nameByID[n.ID],
			Version: parentMeta.version,
			Source:  parentMeta.source,
		}
		for _, dep := range n.Deps {
			for i := range nodes {
				if nodes[i].ID.Name == dep.Name {
					nodes[i].Requirements = append(nodes[i].Requirements, cooldown.Requirement{
						Parent:     parentIdentity,
						ChildName:  dep.Name,
						Expression: dep.Req,
					})
				}
			}
		}
	}

	return cooldown.NewGraph(nodes), nil
}

func pkgID(name, version, source string) string {
	return fmt.Sprintf("%s %s (%s)", name, version, source)
}
