package cmd

import (
	"context"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/appdeploy/internal/observability"
	"github.com/3leaps/appdeploy/pkg/deploy"
	"github.com/3leaps/appdeploy/pkg/prompt"
	"github.com/3leaps/appdeploy/pkg/vcs"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <tag>",
	Short: "Run the guarded deployment sequence for a release tag",
	Long: `Run the full deployment sequence:

  1. refuse to continue while the git index has staged changes
  2. ask whether the changelog was updated
  3. create any missing folder markers in the configuration bucket
  4. choose the application to deploy

Example:
  appdeploy deploy v1.4.0
  appdeploy deploy v1.4.0 --app billing
  appdeploy deploy v1.4.0 --dry-run --no-tui`,
	Args: cobra.ExactArgs(1),
	RunE: runDeploy,
}

var (
	deployApp    string
	deployNoTUI  bool
	deployDryRun bool
	deployRepo   string
)

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringVar(&deployApp, "app", "", "Preselect the application instead of showing the menu")
	deployCmd.Flags().BoolVar(&deployNoTUI, "no-tui", false, "Use plain line prompts even on a terminal")
	deployCmd.Flags().BoolVar(&deployDryRun, "dry-run", false, "Report missing folders without creating them")
	deployCmd.Flags().StringVar(&deployRepo, "repo", "", "Git working tree to check (default repo_dir setting)")
}

// newPrompter is replaced in tests.
var newPrompter = func(cmd *cobra.Command, noTUI bool) deploy.Prompter {
	return prompt.Auto(cmd.InOrStdin(), cmd.OutOrStdout(), noTUI)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(cmd.Context(), s)
	defer cancel()

	matcher, err := s.AppMatcher()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid application filter", err)
	}

	repoDir := s.RepoDir
	if deployRepo != "" {
		repoDir = deployRepo
	}

	out := cmd.OutOrStdout()
	var opened deploy.Store
	defer func() {
		if opened != nil {
			closeStore(opened)
		}
	}()

	d, err := deploy.NewDeployer(deploy.DeployerConfig{
		Repo:     vcs.Repository{Dir: repoDir},
		Prompter: newPrompter(cmd, deployNoTUI),
		Stores: func(ctx context.Context) (deploy.Store, error) {
			store, err := openStore(ctx, s)
			opened = store
			return store, err
		},
		Bucket: s.ConfigBucketName,
		Out:    out,
		Logger: observability.CLILogger,
		App:    deployApp,
		Options: []deploy.Option{
			deploy.WithMatcher(matcher),
			deploy.WithDryRun(deployDryRun),
		},
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid deployment setup", err)
	}

	observability.CLILogger.Debug("Starting deployment",
		zap.String("tag", args[0]),
		zap.String("repo", repoDir),
		zap.String("bucket", s.ConfigBucketName),
		zap.Bool("dry_run", deployDryRun))

	res, err := d.Deploy(ctx, args[0])
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return exitError(foundry.ExitExternalServiceUnavailable, "Deployment timed out", err)
		}
		return deployExitError("Deployment failed", err)
	}

	observability.CLILogger.Info("Deployment target selected",
		zap.String("run_id", res.RunID),
		zap.String("tag", res.Tag),
		zap.String("app", res.Application.Name),
		zap.String("key", res.Application.Key),
		zap.Int("created_folders", len(res.CreatedFolders)))
	return nil
}
