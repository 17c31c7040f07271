// Package selector implements §4.5: for a fresh package, enumerate the
// older, non-yanked, constraint-satisfying, aged-enough versions, in
// descending semver order.
//
// The constraint-intersection technique (textual AND of every
// requirement expression, re-parsed as one semver.Constraints) is
// lifted directly from the teacher's
// internal/packagemanager/resolver.go (parseConstraint/mustSemver),
// which builds parent-constraint intersections the same way for its
// own (from-scratch) resolution search.
package selector

import (
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/dertin/cargo-cooldown/internal/cooldown"
)

// Selector enumerates eligible downgrade candidates.
type Selector struct {
	Cache VersionSource
}

// VersionSource supplies cached version records for a package name;
// satisfied by *registrycache.Cache.
type VersionSource interface {
	Get(name string) (cooldown.VersionIndex, bool)
}

// New builds a Selector over the given version source.
func New(cache VersionSource) *Selector {
	return &Selector{Cache: cache}
}

// Candidates implements §4.5's filtering and ordering. requirements is
// every parent_requirement currently imposed on name (as returned by
// Graph.RequirementsOn); their expressions are intersected via AND.
func (s *Selector) Candidates(name string, current *semver.Version, requirements []cooldown.Requirement, cutoff time.Time) ([]*semver.Version, error) {
	constraint, err := intersect(requirements)
	if err != nil {
		return nil, err
	}

	vi, ok := s.Cache.Get(name)
	if !ok {
		return nil, nil
	}

	var out []*semver.Version
	for _, rec := range vi.Versions {
		if rec.Yanked {
			continue
		}
		if !rec.Version.LessThan(current) {
			continue
		}
		if constraint != nil && !constraint.Check(rec.Version) {
			continue
		}
		if rec.PublicationTime.After(cutoff) {
			continue
		}
		out = append(out, rec.Version)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].GreaterThan(out[j])
	})
	return out, nil
}

// intersect ANDs every requirement expression into one constraint set,
// matching resolver.go's technique of re-parsing
// "expr1, expr2, ..." as a single semver.NewConstraint call. An empty
// requirement list imposes no constraint.
func intersect(requirements []cooldown.Requirement) (*semver.Constraints, error) {
	if len(requirements) == 0 {
		return nil, nil
	}
	var parts []string
	for _, r := range requirements {
		expr := strings.TrimSpace(r.Expression)
		if expr == "" {
			continue
		}
		parts = append(parts, expr)
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return semver.NewConstraint(strings.Join(parts, ", "))
}
