// Package pinexec implements §4.6: attempting a precise downgrade via
// the package manager and interpreting its success/rejection signal.
package pinexec

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/dertin/cargo-cooldown/internal/cderrors"
	"github.com/dertin/cargo-cooldown/internal/procexec"
)

// Outcome classifies the result of one pin attempt (§4.6 Outcomes).
type Outcome int

const (
	Applied Outcome = iota
	Rejected
)

// Result is the full outcome of one pin attempt.
type Result struct {
	Outcome  Outcome
	Blocking []string
}

// Executor attempts precise downgrades.
type Executor struct {
	WorkDir string
	Runner  *procexec.Runner
}

// New builds an Executor rooted at workDir.
func New(workDir string) *Executor {
	return &Executor{
		WorkDir: workDir,
		Runner: &procexec.Runner{
			Command: "cargo",
			Extra:   []string{"CARGO_TERM_COLOR=never"},
		},
	}
}

// blockerPattern extracts package names cargo reports as the cause of
// a rejected precise update, e.g. "because foo requires bar ^2".
var blockerPattern = regexp.MustCompile(`\bbecause ([A-Za-z0-9_-]+) requires\b`)

// Pin delegates to `cargo update --precise` with the instance-qualified
// selector name@current_version (§4.6 "mandatory when multiple
// instances... coexist"). Error is non-nil only for Outcome==Error
// conditions (process spawn failure, unparsable output); Applied and
// Rejected are both returned as a nil-error Result.
func (e *Executor) Pin(ctx context.Context, name string, current, candidate *semver.Version) (Result, error) {
	selector := fmt.Sprintf("%s@%s", name, current.String())
	res, err := e.Runner.Run(ctx, e.WorkDir, "update", "--precise", candidate.String(), "--package", selector)
	if err != nil {
		return Result{}, err
	}

	if res.ExitCode == 0 {
		return Result{Outcome: Applied}, nil
	}

	if len(res.Stderr) == 0 && len(res.Stdout) == 0 {
		return Result{}, cderrors.SubprocessError(
			"cargo update --precise failed with no diagnostic output",
			map[string]string{"package": selector, "target": candidate.String()},
		)
	}

	// Blockers left nil when none are parseable: §4.6 "empty set, which
	// signals... escalate all strict parents" — the Resolver Loop owns
	// that fallback.
	return Result{Outcome: Rejected, Blocking: parseBlockers(string(res.Stderr))}, nil
}

func parseBlockers(stderr string) []string {
	matches := blockerPattern.FindAllStringSubmatch(stderr, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
