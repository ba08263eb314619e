package cmd

import (
	"context"
	"fmt"
	"runtime"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/appdeploy/internal/config"
	"github.com/3leaps/appdeploy/internal/observability"
	"github.com/3leaps/appdeploy/pkg/deploy"
	"github.com/3leaps/appdeploy/pkg/preflight"
	"github.com/3leaps/appdeploy/pkg/vcs"
)

var (
	doctorIMDS bool
)

// doctorChecks counts environment, git, settings, credentials and bucket.
// --imds adds one more.
const doctorChecks = 5

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the environment a deployment needs and suggest
fixes for common issues.

Examples:
  appdeploy doctor          # git, settings, credentials, bucket
  appdeploy doctor --imds   # also ask EC2 instance metadata for the region`,
	Args: cobra.NoArgs,
	Run:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorIMDS, "imds", false, "Query EC2 instance metadata for the region")
}

// doctorCheck reports one numbered check line.
type doctorCheck struct {
	num, total int
}

func (c *doctorCheck) ok(what, detail string, fields ...zap.Field) {
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking %s... ✅ %s", c.num, c.total, what, detail), fields...)
	c.num++
}

func (c *doctorCheck) warn(what, detail string, fields ...zap.Field) {
	observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking %s... ⚠️  %s", c.num, c.total, what, detail), fields...)
	c.num++
}

func (c *doctorCheck) fail(what, detail string, fields ...zap.Field) {
	observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking %s... ❌ %s", c.num, c.total, what, detail), fields...)
	c.num++
}

func runDoctor(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	bannerName := binaryName + " doctor"

	observability.CLILogger.Info("=== " + bannerName + " ===")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("Running diagnostic checks...")
	observability.CLILogger.Info("")

	total := doctorChecks
	if doctorIMDS {
		total++
	}
	check := &doctorCheck{num: 1, total: total}
	allChecks := true

	check.ok("environment", fmt.Sprintf("%s/%s %s", runtime.GOOS, runtime.GOARCH, runtime.Version()),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))

	if v, err := vcs.Available(ctx); err != nil {
		check.fail("git", "git not found on PATH", zap.Error(err))
		allChecks = false
	} else {
		check.ok("git", v)
	}

	s, err := config.Load(settingsPath, nil)
	switch {
	case err != nil:
		check.fail("settings", "cannot load settings", zap.Error(err))
		allChecks = false
	case s.Validate() != nil:
		check.fail("settings", "invalid settings", zap.Error(s.Validate()))
		allChecks = false
	default:
		path := s.Path
		if path == "" {
			path = "environment only"
		}
		check.ok("settings", path,
			zap.String("bucket", s.ConfigBucketName),
			zap.String("region", s.AWSRegion))
	}

	if !runAWSChecks(ctx, check, s) {
		allChecks = false
	}

	observability.CLILogger.Info("")
	if allChecks {
		observability.CLILogger.Info(fmt.Sprintf("✅ All checks passed! %s is ready to deploy.", binaryName))
	} else {
		observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	observability.CLILogger.Info("")
	observability.CLILogger.Info("=== End Diagnostics ===")
}

// runAWSChecks resolves credentials, optionally the IMDS region, and probes
// the configuration bucket. s may be nil when settings failed to load.
func runAWSChecks(ctx context.Context, check *doctorCheck, s *config.Settings) bool {
	var opts []func(*awsconfig.LoadOptions) error
	if s != nil && s.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(s.AWSRegion))
	}
	if s != nil && s.AWSProfile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(s.AWSProfile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		check.fail("AWS credentials", "cannot load AWS config", zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}

	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		check.fail("AWS credentials", "cannot retrieve credentials", zap.Error(err))
		printAWSCredentialsHelp()
		return false
	}
	source := creds.Source
	if source == "" {
		source = "unknown"
	}
	check.ok("AWS credentials", maskAccessKey(creds.AccessKeyID)+" via "+source,
		zap.String("access_key", maskAccessKey(creds.AccessKeyID)),
		zap.String("source", source))

	ok := true
	if doctorIMDS {
		imdsCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		out, err := imds.NewFromConfig(cfg).GetRegion(imdsCtx, &imds.GetRegionInput{})
		cancel()
		if err != nil {
			check.warn("instance metadata region", "not running on EC2 or IMDS unreachable", zap.Error(err))
		} else {
			check.ok("instance metadata region", out.Region, zap.String("imds_region", out.Region))
		}
	}

	if s == nil || s.ConfigBucketName == "" {
		check.fail("configuration bucket", "no bucket configured")
		return false
	}

	store, err := openStore(ctx, s)
	if err != nil {
		check.fail("configuration bucket", "cannot create S3 client", zap.Error(err))
		return false
	}
	defer closeStore(store)

	target, isProvider := store.(interface{ Provider() deploy.BucketProvider })
	if !isProvider {
		exists, err := store.BucketExists(ctx)
		switch {
		case err != nil:
			check.fail("configuration bucket", s.ConfigBucketName+" unreachable", zap.Error(err))
			ok = false
		case !exists:
			check.fail("configuration bucket", s.ConfigBucketName+" not found")
			ok = false
		default:
			check.ok("configuration bucket", s.ConfigBucketName)
		}
		return ok
	}

	rec, err := preflight.Bucket(ctx, target.Provider())
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if n := len(rec.Results); n > 0 {
			last := rec.Results[n-1]
			fields = append(fields, zap.String("capability", last.Capability), zap.String("error_code", last.ErrorCode))
		}
		check.fail("configuration bucket", s.ConfigBucketName+" not usable", fields...)
		return false
	}
	caps := make([]string, 0, len(rec.Results))
	for _, r := range rec.Results {
		caps = append(caps, r.Capability)
	}
	check.ok("configuration bucket", s.ConfigBucketName, zap.Strings("capabilities", caps))
	return ok
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// printAWSCredentialsHelp prints help for configuring AWS credentials.
func printAWSCredentialsHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure AWS credentials:")
	observability.CLILogger.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables, or")
	observability.CLILogger.Info("  2. Run 'aws configure' to set up a profile and set aws_profile, or")
	observability.CLILogger.Info("  3. Use an IAM role when running on AWS infrastructure")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("For S3-compatible storage (MinIO, moto, etc.), also set aws_endpoint.")
	observability.CLILogger.Info("")
}
