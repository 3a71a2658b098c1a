package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackrank/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the registry and repository cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var resource string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached package and repository data",
		Example: `  stackrank cache clear
  stackrank cache clear --resource source-host`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if b := cfg.Cache.Backend; b != "" && b != cache.BackendFile {
				printWarning("The %s backend is shared; entries expire on their own", b)
				printDetail("Only the file cache can be cleared from the CLI")
				return nil
			}

			dir, err := c.configuredCacheDir()
			if err != nil {
				return err
			}
			count, err := clearCache(dir, resource)
			if err != nil {
				return err
			}
			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}

			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&resource, "resource", "", "only clear one resource (registry, source-host, package-list)")
	return cmd
}

// clearCache empties dir, or only the entries of resource when it is set.
func clearCache(dir, resource string) (int, error) {
	switch resource {
	case "":
		return clearDir(dir)
	case cache.ResourceRegistry, cache.ResourceSourceHost, cache.ResourcePackageList:
	default:
		return 0, fmt.Errorf("unknown resource %q: want registry, source-host or package-list", resource)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return 0, err
	}
	return fc.(*cache.FileCache).Purge(resource)
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.configuredCacheDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

// clearDir removes every file below dir and then the emptied subdirectories.
// dir itself is kept. A missing dir counts as empty.
func clearDir(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	count := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if path == dir {
			return nil
		}
		if !info.IsDir() {
			if err := os.Remove(path); err == nil {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return count, err
	}

	// Clean up empty subdirectories, deepest first.
	var dirs []string
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && path != dir && info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		os.Remove(dirs[i])
	}

	return count, nil
}
