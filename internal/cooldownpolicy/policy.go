// Package cooldownpolicy implements §4.4: turning a graph node plus the
// cooldown configuration into a fresh/aged classification.
package cooldownpolicy

import (
	"time"

	"github.com/dertin/cargo-cooldown/internal/cderrors"
	"github.com/dertin/cargo-cooldown/internal/cooldown"
)

// Policy evaluates cooldown classification for graph nodes.
type Policy struct {
	Config cooldown.Config
	Now    func() time.Time
}

// New builds a Policy bound to the given configuration. now defaults to
// time.Now if nil, letting tests inject a fixed clock (§8 determinism).
func New(cfg cooldown.Config, now func() time.Time) *Policy {
	if now == nil {
		now = time.Now
	}
	return &Policy{Config: cfg, Now: now}
}

// Classify implements §4.4's classify(node): aged if not guarded, or if
// the node's publication instant is at or before the cutoff; fresh
// otherwise. published supplies the publication instant for guarded
// nodes; its absence for a guarded node yields MissingMetadata.
func (p *Policy) Classify(n cooldown.Node, published map[cooldown.Identity]time.Time) (cooldown.Classification, error) {
	if !p.Config.IsGuarded(n) {
		return cooldown.Aged, nil
	}

	t, ok := published[n.ID]
	if !ok {
		return cooldown.Aged, cderrors.MissingMetadata(n.ID.Name)
	}

	cutoff := p.Config.Cutoff(n.ID.Name, p.Now())
	if !t.After(cutoff) {
		return cooldown.Aged, nil
	}
	return cooldown.Fresh, nil
}

// ClassifyAll classifies every node in the graph, returning the set of
// guarded-fresh node names (order of first appearance) and the first
// MissingMetadata error encountered, if any — callers decide fatality
// per §4.4 ("the Resolver Loop decides whether that is fatal").
func (p *Policy) ClassifyAll(g *cooldown.Graph, published map[cooldown.Identity]time.Time) ([]string, error) {
	var fresh []string
	seen := make(map[string]bool)
	var firstErr error
	for _, n := range g.Nodes {
		cls, err := p.Classify(n, published)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if cls == cooldown.Fresh && !seen[n.ID.Name] {
			seen[n.ID.Name] = true
			fresh = append(fresh, n.ID.Name)
		}
	}
	return fresh, firstErr
}
