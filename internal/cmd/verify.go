package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/appdeploy/internal/config"
	"github.com/3leaps/appdeploy/internal/observability"
	"github.com/3leaps/appdeploy/pkg/deploy"
	"github.com/3leaps/appdeploy/pkg/output"
	"github.com/3leaps/appdeploy/pkg/reconcile"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Create missing folder markers in the configuration bucket",
	Long: `Reconcile the configuration bucket without the git and changelog gates.

Every folder implied by an object key gets a zero-byte private marker,
shallowest first. Markers that already exist are left alone.

Example:
  appdeploy verify
  appdeploy verify --dry-run
  appdeploy verify --output jsonl`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Verify the configuration bucket and list its applications",
	Long: `Reconcile the configuration bucket, then list the applications found in it.
An application is a top-level folder marker such as "billing/".

Example:
  appdeploy apps
  appdeploy apps --output jsonl`,
	Args: cobra.NoArgs,
	RunE: runApps,
}

var (
	verifyOutput string
	verifyDryRun bool
	appsOutput   string
)

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(appsCmd)

	verifyCmd.Flags().StringVarP(&verifyOutput, "output", "o", "text", "Output format (text|jsonl)")
	verifyCmd.Flags().BoolVar(&verifyDryRun, "dry-run", false, "Report missing folders without creating them")

	appsCmd.Flags().StringVarP(&appsOutput, "output", "o", "text", "Output format (text|jsonl)")
}

// reconcileRun is one verify pass and its reporting sink.
type reconcileRun struct {
	runID   string
	started time.Time
	format  string
	out     io.Writer
	writer  *output.JSONLWriter
	conf    *deploy.Configuration
	folders int
	werr    error
}

func newReconcileRun(out io.Writer, format, bucket string) (*reconcileRun, error) {
	switch format {
	case "text", "jsonl":
	default:
		return nil, exitError(foundry.ExitInvalidArgument, "Invalid --output value", fmt.Errorf("unsupported format: %s", format))
	}
	r := &reconcileRun{
		runID:   uuid.NewString(),
		started: time.Now(),
		format:  format,
		out:     out,
	}
	if format == "jsonl" {
		r.writer = output.NewJSONLWriter(out, r.runID, bucket)
	}
	return r, nil
}

// verify opens the store and runs Configuration.Verify, streaming folder
// decisions as they happen.
func (r *reconcileRun) verify(ctx context.Context, s *config.Settings, dryRun bool) error {
	matcher, err := s.AppMatcher()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid application filter", err)
	}

	store, err := connectStore(ctx, s)
	if err != nil {
		return err
	}
	defer closeStore(store)

	r.conf = deploy.NewConfiguration(store, s.ConfigBucketName,
		deploy.WithLogger(observability.CLILogger.With(zap.String("run_id", r.runID))),
		deploy.WithMatcher(matcher),
		deploy.WithDryRun(dryRun),
		deploy.WithFolderObserver(r.onFolder))

	if r.format == "text" {
		fmt.Fprintln(r.out, "Checking available configurations... Please wait...")
	}
	if err := r.conf.Verify(ctx); err != nil {
		r.writeError(ctx, err)
		return deployExitError("Verification failed", err)
	}
	if r.werr != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", r.werr)
	}
	if r.format == "text" {
		fmt.Fprintln(r.out, "Check done.")
	}
	return nil
}

func (r *reconcileRun) onFolder(ev deploy.FolderEvent) {
	r.folders++
	if r.werr != nil {
		return
	}
	switch r.format {
	case "jsonl":
		r.werr = r.writer.WriteFolder(context.Background(), &output.FolderRecord{
			Key:    ev.Key,
			Depth:  ev.Depth,
			Action: string(ev.Action),
		})
	default:
		switch ev.Action {
		case deploy.FolderCreated:
			_, r.werr = fmt.Fprintf(r.out, "\tCreated %s\n", ev.Key)
		case deploy.FolderPlanned:
			_, r.werr = fmt.Fprintf(r.out, "\tWould create %s\n", ev.Key)
		}
	}
}

func (r *reconcileRun) writeError(ctx context.Context, err error) {
	if r.writer == nil {
		return
	}
	code := output.ErrCodeInternal
	switch deploy.KindOf(err) {
	case deploy.KindPrecondition:
		code = output.ErrCodePrecondition
	case deploy.KindConfiguration:
		code = output.ErrCodeConfiguration
	case deploy.KindUsage:
		code = output.ErrCodeUsage
	case deploy.KindStorage:
		code = output.ErrCodeStorage
	}
	if werr := r.writer.WriteError(context.WithoutCancel(ctx), &output.ErrorRecord{Code: code, Message: err.Error()}); werr != nil {
		observability.CLILogger.Debug("Failed to write error record", zap.Error(werr))
	}
}

func (r *reconcileRun) writeApps(ctx context.Context, apps []reconcile.Application) error {
	for _, app := range apps {
		var err error
		if r.format == "jsonl" {
			err = r.writer.WriteApp(ctx, &output.AppRecord{Name: app.Name, Key: app.Key})
		} else {
			_, err = fmt.Fprintln(r.out, app.Name)
		}
		if err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
		}
	}
	return nil
}

func (r *reconcileRun) writeSummary(ctx context.Context, apps int, dryRun bool) error {
	if r.writer == nil {
		return nil
	}
	d := time.Since(r.started)
	err := r.writer.WriteSummary(ctx, &output.SummaryRecord{
		Objects:       len(r.conf.Listing()),
		Folders:       r.folders,
		Created:       len(r.conf.CreatedFolders()),
		Apps:          apps,
		DryRun:        dryRun,
		Duration:      d,
		DurationHuman: d.Round(time.Millisecond).String(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return exitError(foundry.ExitFileWriteError, "Failed to write summary", err)
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd.Context(), s)
	defer cancel()

	run, err := newReconcileRun(cmd.OutOrStdout(), verifyOutput, s.ConfigBucketName)
	if err != nil {
		return err
	}
	if err := run.verify(ctx, s, verifyDryRun); err != nil {
		return err
	}

	apps, err := run.conf.Apps()
	if err != nil {
		return deployExitError("Verification failed", err)
	}
	return run.writeSummary(ctx, len(apps), verifyDryRun)
}

func runApps(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(cmd.Context(), s)
	defer cancel()

	run, err := newReconcileRun(cmd.OutOrStdout(), appsOutput, s.ConfigBucketName)
	if err != nil {
		return err
	}
	if err := run.verify(ctx, s, false); err != nil {
		return err
	}

	apps, err := run.conf.Apps()
	if err != nil {
		return deployExitError("Listing applications failed", err)
	}
	if run.format == "text" {
		fmt.Fprintln(run.out, "Configured applications are:")
	}
	if err := run.writeApps(ctx, apps); err != nil {
		return err
	}
	return run.writeSummary(ctx, len(apps), false)
}
