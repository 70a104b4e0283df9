package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rpm-software-management/libdnf-sub006/internal/app"
	"github.com/rpm-software-management/libdnf-sub006/internal/config"
	"github.com/rpm-software-management/libdnf-sub006/internal/modulemd"
	"github.com/rpm-software-management/libdnf-sub006/internal/storage"
)

func (c *cli) newRepoCmd() *cobra.Command {
	repoCmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage repositories and their module metadata",
	}
	repoCmd.AddCommand(c.newRepoImportCmd(), c.newRepoRemoveCmd(), c.newRepoListCmd(), c.newRepoExportCmd())
	return repoCmd
}

// storage opens the configured metadata storage together with the
// configured repositories.
func (c *cli) storage(ctx context.Context) (storage.Provider, []config.Repo, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	repos, err := config.ParseRepos(cfg.Repos)
	if err != nil {
		return nil, nil, err
	}
	p, err := storage.New(ctx, cfg, c.log)
	if err != nil {
		return nil, nil, err
	}
	return p, repos, nil
}

// saveRepos writes repos back to the config file.
func (c *cli) saveRepos(repos []config.Repo) (string, error) {
	c.v.Set("REPOS", config.FormatRepos(repos))
	return c.writeConfig()
}

func (c *cli) newRepoImportCmd() *cobra.Command {
	var priority int
	cmd := &cobra.Command{
		Use:   "import <repo_id> <file>",
		Short: "Import module metadata for a repository",
		Long: `Validates a modulemd YAML stream and stores it as the module metadata of
the repository. The repository is added to REPOS in the config file.
Use "-" to read the metadata from standard input.

Lower priority values are preferred, both for module packages and for
module defaults.

Example:
  modulectl repo import fedora-modular ./modules.yaml --priority 99`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repoID, file := args[0], args[1]

			var raw []byte
			var err error
			if file == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("failed to read metadata: %w", err)
			}

			p, repos, err := c.storage(ctx)
			if err != nil {
				return err
			}
			idx, err := app.ImportMetadata(ctx, p, repoID, raw)
			if idx == nil {
				return err
			}
			for _, e := range multierr.Errors(err) {
				c.log.Warn("skipped invalid metadata document", zap.String("repo", repoID), zap.Error(e))
			}

			repos = upsertRepo(repos, config.Repo{ID: repoID, Priority: priority})
			path, err := c.saveRepos(repos)
			if err != nil {
				return err
			}
			c.log.Info("repository imported", zap.String("repo", repoID), zap.String("config", path))
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d module streams and %d defaults into %s\n",
				len(idx.Modules), len(idx.Defaults), repoID)
			return nil
		},
	}
	cmd.Flags().IntVar(&priority, "priority", config.DefaultRepoPriority, "Repository priority, lower is preferred")
	return cmd
}

func upsertRepo(repos []config.Repo, repo config.Repo) []config.Repo {
	for i := range repos {
		if repos[i].ID == repo.ID {
			repos[i].Priority = repo.Priority
			return repos
		}
	}
	return append(repos, repo)
}

func (c *cli) newRepoRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <repo_id>",
		Short: "Remove a repository and its module metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repoID := args[0]
			p, repos, err := c.storage(ctx)
			if err != nil {
				return err
			}

			kept := repos[:0]
			for _, r := range repos {
				if r.ID != repoID {
					kept = append(kept, r)
				}
			}
			if len(kept) == len(repos) {
				return fmt.Errorf("unknown repository %q", repoID)
			}
			if err := storage.DeleteMetadata(ctx, p, repoID); err != nil {
				return err
			}
			if _, err := c.saveRepos(kept); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", repoID)
			return nil
		},
	}
}

func (c *cli) newRepoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, repos, err := c.storage(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REPO\tPRIORITY\tMODULES\tDEFAULTS")
			for _, r := range repos {
				modules, defaults := "-", "-"
				raw, err := storage.ReadMetadata(ctx, p, r.ID)
				if err == nil {
					idx, _ := modulemd.Parse(raw)
					modules, defaults = fmt.Sprint(len(idx.Modules)), fmt.Sprint(len(idx.Defaults))
				} else {
					c.log.Debug("no metadata", zap.String("repo", r.ID), zap.Error(err))
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", r.ID, r.Priority, modules, defaults)
			}
			return w.Flush()
		},
	}
}

func (c *cli) newRepoExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <repo_id>",
		Short: "Write the stored module metadata of a repository",
		Long: `Writes the stored modulemd YAML of a repository to standard output or,
with --output, to a file.

Example:
  modulectl repo export fedora-modular --output ./modules.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, _, err := c.storage(ctx)
			if err != nil {
				return err
			}
			raw, err := storage.ReadMetadata(ctx, p, args[0])
			if err != nil {
				return fmt.Errorf("repo %s: %w", args[0], err)
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			}
			if err := os.WriteFile(output, raw, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			c.log.Info("metadata exported", zap.String("repo", args[0]), zap.String("path", output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default is standard output)")
	return cmd
}
