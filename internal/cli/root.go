package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackrank/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// Persistent flags:
//   - --config: path to config.toml (default $XDG_CONFIG_HOME/stackrank/config.toml)
//   - --github-token: token for GitHub enrichment, overriding env and stored credentials
//   - --no-cache: bypass the cache backend entirely
//
// The logger is attached to the command context and accessible to all
// commands via loggerFromContext.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Stackrank compares npm and PyPI packages",
		Long: `Stackrank compares packages from npm and PyPI on downloads, repository
activity and quality scores, enriched with GitHub repository data.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/stackrank/config.toml)")
	flags.StringVar(&c.githubToken, "github-token", "", "GitHub token for repository data")
	flags.BoolVar(&c.noCache, "no-cache", false, "disable caching")

	root.AddCommand(c.compareCommand())
	root.AddCommand(c.pairCommand())
	root.AddCommand(c.suggestCommand())
	root.AddCommand(c.authCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}
