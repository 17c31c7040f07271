// Package resolverloop implements §4.7: the fixed-point orchestration
// that drives classification, candidate selection, and pinning to
// completion (or a reported failure).
package resolverloop

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/dertin/cargo-cooldown/internal/cderrors"
	"github.com/dertin/cargo-cooldown/internal/cliutil"
	"github.com/dertin/cargo-cooldown/internal/cooldown"
	"github.com/dertin/cargo-cooldown/internal/cooldownpolicy"
	"github.com/dertin/cargo-cooldown/internal/pinexec"
	"github.com/dertin/cargo-cooldown/internal/selector"
)

// GraphProber obtains resolved graph snapshots; satisfied by
// *graphprobe.Probe.
type GraphProber interface {
	Snapshot(ctx context.Context) (*cooldown.Graph, error)
}

// Pinner attempts precise downgrades; satisfied by *pinexec.Executor.
type Pinner interface {
	Pin(ctx context.Context, name string, current, candidate *semver.Version) (pinexec.Result, error)
}

// VersionLookup resolves the cached publication record for a package
// version; satisfied by *registrycache.Cache.
type VersionLookup interface {
	PublishedAt(id cooldown.Identity) (time.Time, bool)
}

// WarmUp pre-fetches registry data for a batch of guarded names;
// satisfied by *registryclient.Client.
type WarmUp interface {
	WarmUp(ctx context.Context, names []string, now time.Time) error
}

// Status is the terminal state of a Run.
type Status int

const (
	Clean Status = iota
	Stuck
	NonterminatingStatus
)

// Report describes a Stuck or Nonterminating condition for the
// enforce-mode user-visible report of §7.
type Report struct {
	Status   Status
	Package  string
	Version  string
	Age      time.Duration
	Window   time.Duration
	Parents  []string
	Reason   string
	Pins     int
}

// Loop orchestrates the fixed-point resolution described in §4.7.
type Loop struct {
	Probe    GraphProber
	Policy   *cooldownpolicy.Policy
	Selector *selector.Selector
	Pinner   Pinner
	Versions VersionLookup
	WarmUp   WarmUp
	Config   cooldown.Config
	Now      func() time.Time
}

// New builds a Loop. now defaults to time.Now if nil.
func New(probe GraphProber, policy *cooldownpolicy.Policy, sel *selector.Selector, pinner Pinner, versions VersionLookup, warm WarmUp, cfg cooldown.Config, now func() time.Time) *Loop {
	if now == nil {
		now = time.Now
	}
	return &Loop{Probe: probe, Policy: policy, Selector: sel, Pinner: pinner, Versions: versions, WarmUp: warm, Config: cfg, Now: now}
}

// Run executes the fixed-point loop to completion. mode == off is
// handled by the caller (§4.7 "the Resolver Loop is never entered");
// Run assumes it has already been decided to run.
func (l *Loop) Run(ctx context.Context) (Report, error) {
	logger := cliutil.FromContext(ctx)
	attempted := make(map[string]bool)
	pins := 0

	maxIterations := 0 // recomputed from the first snapshot's node count

	// escalated holds names forced into consideration by parent/blocker
	// escalation (§3 "Queue state"), independent of cooldown
	// classification: a parent can need downgrading even though its own
	// publication instant already clears the cutoff, so it will never
	// show up in freshNames on its own. Unlike freshNames, which is
	// recomputed from scratch every pass, escalated entries persist
	// across iterations until popped.
	var escalated []string

	for iteration := 0; ; iteration++ {
		select {
		case <-ctx.Done():
			return Report{}, cderrors.Cancelled("resolver loop iteration")
		default:
		}

		graph, err := l.Probe.Snapshot(ctx)
		if err != nil {
			return Report{}, err
		}

		if maxIterations == 0 {
			n := len(graph.Nodes)
			maxIterations = n*n + 64 // generous, proportional to node count squared (§4.7 step 6)
		}
		if iteration > maxIterations {
			return Report{Status: NonterminatingStatus, Pins: pins}, cderrors.Nonterminating(fmt.Sprint(iteration))
		}

		published := l.publishedMap(graph)
		freshNames, clsErr := l.Policy.ClassifyAll(graph, published)
		if clsErr != nil && cderrors.Is(clsErr, cderrors.CategoryMissingMetadata) {
			if l.Config.Mode == cooldown.ModeEnforce {
				return Report{}, clsErr
			}
			logger.Warn("missing publication metadata; continuing under warn/off tolerance", "error", clsErr)
		}

		escalated = retainKnown(escalated, graph)
		pool := dedupAppend(append([]string(nil), freshNames...), escalated...)

		if len(pool) == 0 {
			return Report{Status: Clean, Pins: pins}, nil
		}

		ordered := prioritize(graph, pool)
		name := ordered[0]
		escalated = removeName(escalated, name)

		node, ok := graph.NodeByName(name)
		if !ok {
			continue
		}

		requirements := graph.RequirementsOn(name)
		cutoff := l.Config.Cutoff(name, l.Now())

		candidates, err := l.Selector.Candidates(name, node.ID.Version, requirements, cutoff)
		if err != nil {
			return Report{}, cderrors.ConfigError(fmt.Sprintf("could not intersect requirements for %s: %v", name, err), nil)
		}

		candidate := firstUnattempted(candidates, name, attempted)

		if candidate == nil {
			childPublished := published[node.ID]
			parents := graph.StrictParentsOf(name, childPublished, published)
			if len(parents) == 0 {
				return l.stuckReport(node, childPublished, pins, "no older non-yanked version satisfies parent requirements and the cutoff"), cderrors.NoCandidate(name, node.ID.Version.String(), "stuck: no candidate and no strict parent to escalate")
			}
			parentNames := identityNames(parents)
			escalated = dedupAppend(escalated, parentNames...)
			logger.Debug("escalating to strict parents", "package", name, "parents", parentNames)
			continue
		}

		logger.Info("attempting pin", "package", name, "from", node.ID.Version.String(), "to", candidate.String())
		attempted[attemptKey(name, candidate)] = true

		result, err := l.Pinner.Pin(ctx, name, node.ID.Version, candidate)
		if err != nil {
			return Report{}, err
		}

		switch result.Outcome {
		case pinexec.Applied:
			pins++
			attempted = make(map[string]bool) // fixed point progressed: §4.7 step 5 "clear attempted"
			logger.Info("pin applied", "package", name, "version", candidate.String())
		case pinexec.Rejected:
			blockers := result.Blocking
			if len(blockers) == 0 {
				// Unknown blockers: escalate all strict parents of N (§4.6).
				blockers = identityNames(graph.StrictParentsOf(name, published[node.ID], published))
			}
			escalated = dedupAppend(escalated, blockers...)
			logger.Debug("pin rejected; escalating blockers", "package", name, "blockers", blockers)
		}
	}
}

func (l *Loop) publishedMap(g *cooldown.Graph) map[cooldown.Identity]time.Time {
	out := make(map[cooldown.Identity]time.Time)
	for _, n := range g.Nodes {
		if t, ok := l.Versions.PublishedAt(n.ID); ok {
			out[n.ID] = t
		}
	}
	return out
}

func (l *Loop) stuckReport(node cooldown.Node, published time.Time, pins int, reason string) Report {
	var parentNames []string
	for _, req := range node.Requirements {
		parentNames = append(parentNames, req.Parent.Name)
	}
	age := time.Duration(0)
	if !published.IsZero() {
		age = l.Now().Sub(published)
	}
	return Report{
		Status:  Stuck,
		Package: node.ID.Name,
		Version: node.ID.Version.String(),
		Age:     age,
		Window:  l.Config.EffectiveWindow(node.ID.Name),
		Parents: parentNames,
		Reason:  reason,
		Pins:    pins,
	}
}

func attemptKey(name string, v *semver.Version) string {
	return name + "@" + v.String()
}

// identityNames projects a slice of identities down to their package
// names, used when enqueuing escalated parents/blockers.
func identityNames(ids []cooldown.Identity) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, id.Name)
	}
	return names
}

// dedupAppend appends each of names to queue, skipping any already
// present.
func dedupAppend(queue []string, names ...string) []string {
	seen := make(map[string]bool, len(queue))
	for _, q := range queue {
		seen[q] = true
	}
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			queue = append(queue, n)
		}
	}
	return queue
}

// removeName drops every occurrence of name from queue.
func removeName(queue []string, name string) []string {
	out := queue[:0]
	for _, q := range queue {
		if q != name {
			out = append(out, q)
		}
	}
	return out
}

// retainKnown drops queue entries whose node no longer exists in g,
// which happens when a prior pin removed or renamed a package.
func retainKnown(queue []string, g *cooldown.Graph) []string {
	var out []string
	for _, q := range queue {
		if _, ok := g.NodeByName(q); ok {
			out = append(out, q)
		}
	}
	return out
}

func firstUnattempted(candidates []*semver.Version, name string, attempted map[string]bool) *semver.Version {
	for _, c := range candidates {
		if !attempted[attemptKey(name, c)] {
			return c
		}
	}
	return nil
}

// prioritize orders the pending queue (fresh nodes plus anything
// escalated onto the queue) per §4.7's priority rule: (a) parent of
// another queued node via a strict edge first, (b) number of strict
// out-edges descending, (c) name ascending as a stable tie-break.
func prioritize(g *cooldown.Graph, freshNames []string) []string {
	freshSet := make(map[string]bool, len(freshNames))
	for _, n := range freshNames {
		freshSet[n] = true
	}

	isStrictParentOfFresh := make(map[string]bool)
	strictOutCount := make(map[string]int)

	for _, node := range g.Nodes {
		for _, req := range node.Requirements {
			if !req.Strict() {
				continue
			}
			strictOutCount[req.Parent.Name]++
			if freshSet[req.ChildName] {
				isStrictParentOfFresh[req.Parent.Name] = true
			}
		}
	}

	ordered := append([]string(nil), freshNames...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if isStrictParentOfFresh[a] != isStrictParentOfFresh[b] {
			return isStrictParentOfFresh[a]
		}
		if strictOutCount[a] != strictOutCount[b] {
			return strictOutCount[a] > strictOutCount[b]
		}
		return a < b
	})
	return ordered
}
