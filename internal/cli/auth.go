package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/matzehuels/stackrank/pkg/integrations/github"
	"github.com/matzehuels/stackrank/pkg/settings"
)

const loginTimeout = 5 * time.Minute

// authCommand creates the auth command with subcommands.
func (c *CLI) authCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the GitHub token used for repository data",
		Long: `Store a GitHub token to raise the API rate limit from 60 to 5000 requests
per hour. Without a token, repository figures fall back to the data mirrored by
the npm score service once the anonymous limit is reached.

The token is stored in ~/.config/stackrank/credentials.json. GITHUB_TOKEN,
GH_TOKEN and --github-token take precedence over the stored token.`,
	}

	cmd.AddCommand(c.authLoginCommand())
	cmd.AddCommand(c.authLogoutCommand())
	cmd.AddCommand(c.authStatusCommand())

	return cmd
}

// authLoginCommand creates the login subcommand.
func (c *CLI) authLoginCommand() *cobra.Command {
	var withToken bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with GitHub",
		Long: `Authenticate with GitHub and store the token.

By default the device flow is used: you'll be given a code to enter at
https://github.com/login/device. This needs an OAuth app client id, set with
[github] client_id in the config file or GITHUB_CLIENT_ID.

With --with-token, a personal access token is read from standard input.`,
		Example: `  stackrank auth login
  echo "$TOKEN" | stackrank auth login --with-token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.settingsStore()
			if err != nil {
				return err
			}

			var token string
			if withToken {
				token, err = readToken(cmd.InOrStdin())
			} else {
				if existing, _ := store.Get(ctx); existing != nil {
					printInfo("Already logged in as @%s", existing.Login())
					printDetail("Run 'stackrank auth logout' first to re-authenticate")
					return nil
				}
				token, err = c.runDeviceFlow(ctx)
			}
			if err != nil {
				return err
			}

			creds, err := c.saveToken(ctx, store, token)
			if err != nil {
				return err
			}
			printSuccess("Logged in as @%s", creds.Login())
			return nil
		},
	}

	cmd.Flags().BoolVar(&withToken, "with-token", false, "read a token from standard input")
	return cmd
}

// authLogoutCommand creates the logout subcommand.
func (c *CLI) authLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored GitHub token",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.settingsStore()
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear credentials: %w", err)
			}
			printSuccess("Logged out")
			return nil
		},
	}
}

// authStatusCommand creates the status subcommand.
func (c *CLI) authStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which GitHub token is used",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			token, source := c.token(ctx)
			if token == "" {
				printInfo("Not logged in")
				printKeyValue("Rate limit", "60 requests/hour (anonymous)")
				printNextStep("Log in", "stackrank auth login")
				return nil
			}

			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			spinner := newSpinnerWithContext(ctx, "Verifying token...")
			spinner.Start()
			user, err := c.whoami(ctx, token)
			if err != nil {
				spinner.StopWithError("Token rejected")
				return fmt.Errorf("verify token: %w", err)
			}
			spinner.Stop()

			printSuccess("GitHub")
			printKeyValue("Username", "@"+user.Login)
			if user.Name != "" {
				printKeyValue("Name", user.Name)
			}
			printKeyValue("Token from", source)
			printKeyValue("Rate limit", "5000 requests/hour")
			if source == tokenFromStore {
				if store, err := c.settingsStore(); err == nil {
					if creds, _ := store.Get(ctx); creds != nil && !creds.SavedAt.IsZero() {
						printKeyValue("Saved", creds.SavedAt.Format("Jan 2, 2006"))
					}
					if fs, ok := store.(*settings.FileStore); ok {
						printKeyValue("Stored in", fs.Path())
					}
				}
			}
			return nil
		},
	}
}

// =============================================================================
// Helpers
// =============================================================================

func readToken(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", fmt.Errorf("no token on standard input")
	}
	return token, nil
}

func (c *CLI) whoami(ctx context.Context, token string) (*github.User, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	opts := []github.Option{github.WithToken(token)}
	if cfg.GitHub.APIURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.GitHub.APIURL))
	}
	client, err := github.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return client.Whoami(ctx)
}

// saveToken verifies token against the API and stores it with its account.
func (c *CLI) saveToken(ctx context.Context, store settings.Store, token string) (*settings.Credentials, error) {
	user, err := c.whoami(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	creds := &settings.Credentials{Token: token, User: user, SavedAt: time.Now().UTC()}
	if err := store.Set(ctx, creds); err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	return creds, nil
}

func (c *CLI) runDeviceFlow(ctx context.Context) (string, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.GitHub.ClientID == "" {
		return "", fmt.Errorf("device login needs an OAuth app client id: set [github] client_id or GITHUB_CLIENT_ID, or use --with-token")
	}

	loginCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	flow := github.NewDeviceFlow(cfg.GitHub.ClientID, oauth2.Endpoint{})
	code, err := flow.Start(loginCtx)
	if err != nil {
		return "", err
	}

	printNewline()
	fmt.Println(StyleTitle.Render("GitHub Device Authorization"))
	printNewline()
	printKeyValue("Code", StyleNumber.Render(code.UserCode))
	printKeyValue("URL", StyleLink.Render(code.VerificationURI))
	printNewline()

	if err := openBrowser(code.VerificationURI); err != nil {
		printDetail("Copy the URL above and paste it in your browser")
	} else {
		printDetail("Opening browser...")
	}
	printInline("Waiting for authorization...")

	token, err := flow.Wait(loginCtx, code)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return token, nil
}

func openBrowser(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "linux":
		cmd = exec.Command("xdg-open", rawURL)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", rawURL)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
