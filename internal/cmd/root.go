// Package cmd implements the appdeploy command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/appdeploy/internal/config"
	"github.com/3leaps/appdeploy/internal/observability"
	"github.com/3leaps/appdeploy/pkg/deploy"
	"github.com/3leaps/appdeploy/pkg/provider"
	"github.com/3leaps/appdeploy/pkg/provider/s3"
)

const binaryName = "appdeploy"

// versionInfo is injected at build time through SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	settingsPath string
	bucketFlag   string
	regionFlag   string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   binaryName,
	Short: "Guarded application deployment against an S3 configuration bucket",
	Long: `appdeploy checks that the local git index is clean, asks for a changelog
confirmation, reconciles the folder markers of the S3 configuration bucket and
lets you choose the application to deploy.

Settings are read from ./config/settings.yml (or --settings) and may be
overridden with APPDEPLOY_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.InitCLILogger(binaryName, verbose)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&settingsPath, "settings", "", "Settings file (default ./"+config.DefaultSettingsPath+")")
	pf.StringVar(&bucketFlag, "bucket", "", "Override config_bucket_name")
	pf.StringVar(&regionFlag, "region", "", "Override aws_region")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	observability.CLILogger.Error("Command failed", zap.Error(err))
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitCode(err)
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// exitCode maps err to a process exit code.
func exitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// deployExitError classifies a deployment failure into an exit code.
func deployExitError(message string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return exitError(foundry.ExitSignalInt, message+" cancelled", err)
	case deploy.IsStorage(err):
		return exitError(foundry.ExitExternalServiceUnavailable, message, err)
	default:
		return exitError(foundry.ExitInvalidArgument, message, err)
	}
}

// loadSettings resolves and validates settings, applying root flag
// overrides.
func loadSettings() (*config.Settings, error) {
	overrides := map[string]any{}
	if bucketFlag != "" {
		overrides["config_bucket_name"] = bucketFlag
	}
	if regionFlag != "" {
		overrides["aws_region"] = regionFlag
	}

	s, err := config.Load(settingsPath, overrides)
	if err != nil {
		observability.CLILogger.Error("Failed to load settings", zap.String("path", settingsPath), zap.Error(err))
		if errors.Is(err, config.ErrSettingsNotFound) {
			return nil, exitError(foundry.ExitFileNotFound, "Settings file not found", err)
		}
		return nil, exitError(foundry.ExitFileReadError, "Failed to read settings", err)
	}
	if err := s.Validate(); err != nil {
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid settings", err)
	}
	if !verbose {
		observability.SetLevel(binaryName, s.Logging.Level)
	}

	observability.CLILogger.Debug("Loaded settings",
		zap.String("path", s.Path),
		zap.String("region", s.AWSRegion),
		zap.String("bucket", s.ConfigBucketName))
	return s, nil
}

// withTimeout bounds ctx by the configured run timeout.
func withTimeout(ctx context.Context, s *config.Settings) (context.Context, context.CancelFunc) {
	if s.Timeout > 0 {
		return context.WithTimeout(ctx, s.Timeout)
	}
	return context.WithCancel(ctx)
}

// s3Config maps settings to the S3 provider configuration.
func s3Config(s *config.Settings) s3.Config {
	return s3.Config{
		Bucket:            s.ConfigBucketName,
		Region:            s.AWSRegion,
		Endpoint:          s.AWSEndpoint,
		Profile:           s.AWSProfile,
		ForcePathStyle:    s.S3.ForcePathStyle || s.AWSEndpoint != "",
		MaxKeys:           s.S3.MaxKeys,
		RequestsPerSecond: s.S3.RequestsPerSecond,
	}
}

// openStore connects to the configuration bucket. Tests replace it.
var openStore = func(ctx context.Context, s *config.Settings) (deploy.Store, error) {
	prov, err := s3.New(ctx, s3Config(s))
	if err != nil {
		return nil, err
	}
	return deploy.NewProviderStore(prov), nil
}

// closeStore releases store if it holds resources.
func closeStore(store deploy.Store) {
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			observability.CLILogger.Debug("Failed to close store", zap.Error(err))
		}
	}
}

// connectStore opens the store and classifies connection failures.
func connectStore(ctx context.Context, s *config.Settings) (deploy.Store, error) {
	store, err := openStore(ctx, s)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		if provider.IsMissingCredentials(err) || provider.IsInvalidCredentials(err) {
			printAWSCredentialsHelp()
		}
		return nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	return store, nil
}
