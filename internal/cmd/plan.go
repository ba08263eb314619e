package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/appdeploy/pkg/output"
	"github.com/3leaps/appdeploy/pkg/reconcile"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the folder markers a key listing is missing (offline)",
	Long: `Compute the reconciliation plan for a key listing without touching storage.

Keys are read one per line from --keys-file, or from stdin when no file is
given. The plan lists the folder markers that would be created, in creation
order, and the applications present in the listing.

Example:
  aws s3 ls s3://configs --recursive | awk '{print $4}' | appdeploy plan
  appdeploy plan --keys-file keys.txt --output yaml`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

var (
	planKeysFile string
	planOutput   string
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planKeysFile, "keys-file", "f", "", "File with one object key per line (default stdin)")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "text", "Output format (text|jsonl|yaml)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	switch planOutput {
	case "text", "jsonl", "yaml":
	default:
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", fmt.Errorf("unsupported format: %s", planOutput))
	}

	in := cmd.InOrStdin()
	if planKeysFile != "" && planKeysFile != "-" {
		f, err := os.Open(planKeysFile)
		if err != nil {
			if os.IsNotExist(err) {
				return exitError(foundry.ExitFileNotFound, "Keys file not found", err)
			}
			return exitError(foundry.ExitFileReadError, "Failed to open keys file", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	started := time.Now()
	keys, err := readKeys(in)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read keys", err)
	}

	plan := reconcile.Build(keys)
	if err := writePlan(cmd, plan, started); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write plan", err)
	}
	return nil
}

// readKeys reads one key per line. Line endings are stripped; keys are
// otherwise taken verbatim, so leading spaces stay part of the key.
func readKeys(r io.Reader) ([]string, error) {
	var keys []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		key := strings.TrimRight(sc.Text(), "\r")
		if key == "" {
			continue
		}
		keys = append(keys, key)
	}
	return keys, sc.Err()
}

func writePlan(cmd *cobra.Command, plan reconcile.Plan, started time.Time) error {
	out := cmd.OutOrStdout()

	switch planOutput {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return err
		}
		return enc.Close()

	case "jsonl":
		ctx := cmd.Context()
		w := output.NewJSONLWriter(out, uuid.NewString(), "")
		defer func() { _ = w.Close() }()
		for _, folder := range plan.Folders {
			rec := &output.FolderRecord{Key: folder, Depth: reconcile.Depth(folder), Action: output.ActionPlanned}
			if err := w.WriteFolder(ctx, rec); err != nil {
				return err
			}
		}
		for _, app := range plan.Applications {
			if err := w.WriteApp(ctx, &output.AppRecord{Name: app.Name, Key: app.Key}); err != nil {
				return err
			}
		}
		d := time.Since(started)
		return w.WriteSummary(ctx, &output.SummaryRecord{
			Objects:       len(plan.Keys),
			Folders:       len(plan.Folders),
			Created:       len(plan.Folders),
			Apps:          len(plan.Applications),
			DryRun:        true,
			Duration:      d,
			DurationHuman: d.Round(time.Millisecond).String(),
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Objects:      %d\n", len(plan.Keys))
	if len(plan.Folders) == 0 {
		b.WriteString("Folders:      none missing\n")
	} else {
		fmt.Fprintf(&b, "Folders:      %d missing\n", len(plan.Folders))
		for _, folder := range plan.Folders {
			fmt.Fprintf(&b, "\t%s\n", folder)
		}
	}
	fmt.Fprintf(&b, "Applications: %d\n", len(plan.Applications))
	for _, app := range plan.Applications {
		fmt.Fprintf(&b, "\t%s\n", app.Name)
	}
	_, err := io.WriteString(out, b.String())
	return err
}
