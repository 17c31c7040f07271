// Package cooldown holds the data model shared by every stage of the
// resolver: package identity, requirement edges, version records, the
// resolved graph, and the cooldown configuration applied to it.
package cooldown

import (
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Identity names a single resolved node: a package at an exact version
// from a specific source. Two identities are equal iff all three fields
// match.
type Identity struct {
	Name    string
	Version *semver.Version
	Source  string
}

func (id Identity) String() string {
	return id.Name + "@" + id.Version.String() + " (" + id.Source + ")"
}

// Equal reports whether two identities name the same node.
func (id Identity) Equal(other Identity) bool {
	return id.Name == other.Name && id.Source == other.Source &&
		id.Version != nil && other.Version != nil && id.Version.Equal(other.Version)
}

// Requirement is the semver expression on a single parent->child edge.
type Requirement struct {
	Parent     Identity
	ChildName  string
	Expression string
}

// Strict reports whether the requirement expression is an exact
// equality (e.g. "=1.2.3"), which pins the child to one version.
func (r Requirement) Strict() bool {
	expr := strings.TrimSpace(r.Expression)
	return strings.HasPrefix(expr, "=") && !strings.ContainsAny(expr, ",|")
}

// Constraint parses the requirement expression into a semver
// constraint set, treating an empty expression as "any version".
func (r Requirement) Constraint() (*semver.Constraints, error) {
	expr := strings.TrimSpace(r.Expression)
	if expr == "" {
		expr = ">=0.0.0-0"
	}
	return semver.NewConstraint(expr)
}

// VersionRecord is the publication metadata for one (name, version)
// pair, as obtained from the Registry Cache.
type VersionRecord struct {
	Version          *semver.Version
	PublicationTime  time.Time
	Yanked           bool
}

// VersionIndex is the full set of known versions for one package name,
// plus the instant the index itself was cached.
type VersionIndex struct {
	Name      string
	Versions  []VersionRecord
	WrittenAt time.Time
}

// Fresh reports whether the index was written within ttl of now.
func (vi VersionIndex) Fresh(now time.Time, ttl time.Duration) bool {
	return !vi.WrittenAt.IsZero() && now.Sub(vi.WrittenAt) <= ttl
}

// Find returns the version record for v, if present.
func (vi VersionIndex) Find(v *semver.Version) (VersionRecord, bool) {
	for _, rec := range vi.Versions {
		if rec.Version.Equal(v) {
			return rec, true
		}
	}
	return VersionRecord{}, false
}

// Node is a single resolved graph node: its identity, whether it is a
// workspace root, and the requirements its parents impose on it.
type Node struct {
	ID           Identity
	IsRoot       bool
	Requirements []Requirement
}

// Graph is the resolved dependency graph for one snapshot: a directed
// acyclic multigraph rooted at the workspace members.
type Graph struct {
	Nodes []Node
	// Edges indexed by child name for fast requirement lookup.
	edgesByChild map[string][]Requirement
	// Parents indexed by child identity for escalation.
	parentsByChild map[string][]Identity
}

// NewGraph builds edge indices over the given nodes.
func NewGraph(nodes []Node) *Graph {
	g := &Graph{
		Nodes:          nodes,
		edgesByChild:   make(map[string][]Requirement),
		parentsByChild: make(map[string][]Identity),
	}
	for _, n := range nodes {
		for _, req := range n.Requirements {
			g.edgesByChild[req.ChildName] = append(g.edgesByChild[req.ChildName], req)
			g.parentsByChild[req.ChildName] = append(g.parentsByChild[req.ChildName], req.Parent)
		}
	}
	return g
}

// RequirementsOn returns every requirement currently imposed on a child
// package name, across all parents.
func (g *Graph) RequirementsOn(childName string) []Requirement {
	return g.edgesByChild[childName]
}

// NodeByName returns the first node with the given package name, if
// present. Graphs may contain multiple instances of the same name; for
// pinning, callers must disambiguate by exact identity (see §4.6).
func (g *Graph) NodeByName(name string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

// StrictParentsOf returns every parent whose edge into child is strict
// and whose own publication instant is older than childPublished,
// matching §4.7 step 4's escalation rule.
func (g *Graph) StrictParentsOf(childName string, childPublished time.Time, published map[Identity]time.Time) []Identity {
	var out []Identity
	seen := make(map[Identity]bool)
	for _, req := range g.edgesByChild[childName] {
		if !req.Strict() {
			continue
		}
		if t, ok := published[req.Parent]; ok && !t.Before(childPublished) {
			continue
		}
		if seen[req.Parent] {
			continue
		}
		seen[req.Parent] = true
		out = append(out, req.Parent)
	}
	return out
}
