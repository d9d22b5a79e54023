package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	ghimport "github.com/zulandar/atila/internal/integration/github"
	"github.com/zulandar/atila/internal/normalize"
)

const githubTokenEnv = "ATILA_GITHUB_TOKEN"

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tickets from external trackers",
	}

	cmd.AddCommand(newImportGitHubCmd())
	return cmd
}

func newImportGitHubCmd() *cobra.Command {
	var (
		configPath string
		repo       string
		projectID  uint
	)

	cmd := &cobra.Command{
		Use:   "github",
		Short: "Import open GitHub issues as tickets",
		Long: `Fetches every open issue (pull requests excluded) of a repository and imports
it into a project. Issues imported earlier are updated rather than duplicated.

The token is read from github.token in the config, then ` + githubTokenEnv + `,
and finally prompted for when stdin is a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportGitHub(cmd, configPath, repo, projectID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	cmd.Flags().StringVar(&repo, "repo", "", "repository as owner/name (required)")
	cmd.Flags().UintVar(&projectID, "project", 0, "target project id (required)")
	cmd.MarkFlagRequired("repo")
	cmd.MarkFlagRequired("project")
	return cmd
}

func runImportGitHub(cmd *cobra.Command, configPath, repo string, projectID uint) error {
	owner, name, err := ghimport.ParseRepo(repo)
	if err != nil {
		return err
	}

	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	token := a.cfg.GitHub.Token
	if token == "" {
		token = os.Getenv(githubTokenEnv)
	}
	if token == "" {
		if token, err = promptToken(cmd.ErrOrStderr()); err != nil {
			return err
		}
	}

	platforms, err := normalize.LoadPlatformMap(a.cfg.Normalize.PlatformMap)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, err := ghimport.NewClient(ctx, token, a.cfg.GitHub.BaseURL)
	if err != nil {
		return err
	}
	im, err := ghimport.NewImporter(ghimport.Opts{
		Client:    client,
		Service:   a.svc,
		Platforms: platforms,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}

	res, err := im.Import(ctx, owner, name, projectID)
	if err != nil {
		if ghimport.IsRateLimit(err) {
			return fmt.Errorf("%w (set github.token or %s to raise the limit)", err, githubTokenEnv)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s/%s: %d created, %d updated, %d pull requests skipped\n",
		owner, name, res.Created, res.Updated, res.Skipped)
	return nil
}

// promptToken asks for a GitHub token without echoing it. Outside a
// terminal it returns an empty token, and the import runs unauthenticated.
func promptToken(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(out, "GitHub token (empty for unauthenticated): ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
