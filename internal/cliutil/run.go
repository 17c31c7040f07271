package cliutil

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dertin/cargo-cooldown/internal/allowlist"
	"github.com/dertin/cargo-cooldown/internal/config"
	"github.com/dertin/cargo-cooldown/internal/cooldown"
	"github.com/dertin/cargo-cooldown/internal/cooldownpolicy"
	"github.com/dertin/cargo-cooldown/internal/graphprobe"
	"github.com/dertin/cargo-cooldown/internal/pinexec"
	"github.com/dertin/cargo-cooldown/internal/registrycache"
	"github.com/dertin/cargo-cooldown/internal/registryclient"
	"github.com/dertin/cargo-cooldown/internal/resolverloop"
	"github.com/dertin/cargo-cooldown/internal/selector"
)

// modeFlag lets --mode validate against the three known modes at parse
// time rather than at config.Validate() time, the way cobra commands in
// the pack reach for a custom pflag.Value instead of a bare string flag
// when the set of legal values is small and fixed.
type modeFlag struct {
	value string
	set   bool
}

func (m *modeFlag) String() string { return m.value }

func (m *modeFlag) Set(raw string) error {
	switch cooldown.Mode(raw) {
	case cooldown.ModeEnforce, cooldown.ModeWarn, cooldown.ModeOff:
		m.value = raw
		m.set = true
		return nil
	default:
		return fmt.Errorf("invalid mode %q: want one of enforce, warn, off", raw)
	}
}

func (m *modeFlag) Type() string { return "mode" }

var _ pflag.Value = (*modeFlag)(nil)

func newRunCommand() *cobra.Command {
	var workDir string
	var mode modeFlag

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve the workspace graph and downgrade guarded packages older than the cooldown window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuard(cmd, workDir, &mode)
		},
	}
	cmd.Flags().StringVar(&workDir, "dir", ".", "workspace directory containing Cargo.toml")
	cmd.Flags().Var(&mode, "mode", "override the configured mode: enforce, warn, or off")
	return cmd
}

func runGuard(cmd *cobra.Command, workDir string, modeOverride *modeFlag) error {
	ctx := cmd.Context()
	logger := FromContext(ctx)

	raw, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if modeOverride != nil && modeOverride.set {
		raw.Mode = modeOverride.value
	}
	if raw.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if cooldown.Mode(raw.Mode) == cooldown.ModeOff || raw.CooldownMinutes == 0 {
		logger.Info("cooldown disabled; passthrough", "mode", raw.Mode, "cooldown_minutes", raw.CooldownMinutes)
		return nil
	}

	allowPath := raw.AllowlistPath
	if !filepath.IsAbs(allowPath) {
		allowPath = filepath.Join(workDir, allowPath)
	}
	allow, err := allowlist.Load(allowPath)
	if err != nil {
		return err
	}

	cdConfig := raw.ToCooldownConfig(allow)

	cache, err := registrycache.New(raw.CacheDir)
	if err != nil {
		return err
	}
	client := registryclient.New(raw.RegistryAPI, cache, time.Duration(raw.TTLSeconds)*time.Second, raw.HTTPRetries, raw.OfflineOK)

	probe := graphprobe.New(workDir)
	policy := cooldownpolicy.New(cdConfig, nil)
	sel := selector.New(cache)
	pinner := pinexec.New(workDir)

	loop := resolverloop.New(probe, policy, sel, pinner, cache, client, cdConfig, nil)

	// Pre-warm the cache for the current snapshot's guarded nodes before
	// the first classification, per §5's bounded-fan-out initial batch.
	graph, err := probe.Snapshot(ctx)
	if err != nil {
		return err
	}
	var guardedNames []string
	for _, n := range graph.Nodes {
		if cdConfig.IsGuarded(n) {
			guardedNames = append(guardedNames, n.ID.Name)
		}
	}
	if err := client.WarmUp(ctx, guardedNames, time.Now()); err != nil {
		logger.Warn("warm-up fetch incomplete", "error", err)
	}

	report, err := loop.Run(ctx)
	if err != nil {
		if cooldown.Mode(raw.Mode) == cooldown.ModeWarn {
			printReport(cmd, report)
			logger.Warn("cooldown guard reported an issue but continuing (warn mode)", "error", err)
			return nil
		}
		printReport(cmd, report)
		return err
	}

	logger.Info("cooldown guard clean", "pins_applied", report.Pins)
	return nil
}

func printReport(cmd *cobra.Command, r resolverloop.Report) {
	if r.Package == "" {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(),
		"cooldown guard: %s@%s is %s old (effective window %s); parents: %v; %s\n",
		r.Package, r.Version, r.Age.Round(time.Second), r.Window, r.Parents, r.Reason,
	)
}
