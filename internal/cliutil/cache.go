// Grounded on matzehuels-stacktower/internal/cli/cache.go's
// cacheCommand/cacheClearCommand/cachePathCommand trio, operating here
// on the Registry Cache directory of §4.1/§6 instead of that tool's
// layout cache.
package cliutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dertin/cargo-cooldown/internal/config"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the registry cache",
	}
	cmd.AddCommand(newCachePathCommand())
	cmd.AddCommand(newCacheClearCommand())
	return cmd
}

func newCachePathCommand() *cobra.Command {
	var workDir string
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the resolved cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := config.Load(workDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw.CacheDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&workDir, "dir", ".", "workspace directory containing Cargo.toml")
	return cmd
}

func newCacheClearCommand() *cobra.Command {
	var workDir string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached registry entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := config.Load(workDir)
			if err != nil {
				return err
			}
			return clearDir(raw.CacheDir)
		},
	}
	cmd.Flags().StringVar(&workDir, "dir", ".", "workspace directory containing Cargo.toml")
	return cmd
}

// clearDir walks dir removing files and any subdirectory left empty,
// leaving the root directory itself in place.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if err := os.RemoveAll(path); err != nil {
				return err
			}
			continue
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}
