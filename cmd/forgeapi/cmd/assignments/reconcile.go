package assignments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pixelforge/forge/cmd/forgeapi/cmd/cmdutil"
)

var (
	dryRunFlag bool
	jsonFlag   bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair one-sided assignment references",
	Long: `Scans every account and project and repairs references that only one side
holds: a developer listing a project that does not list them back, or the reverse,
and references to records that no longer exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.LoadBundle()
		if err != nil {
			return err
		}
		defer bundle.Close()

		report, err := bundle.Coordinator.Reconcile(context.Background(), dryRunFlag)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonFlag {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		verb := "Repaired"
		if dryRunFlag {
			verb = "Would repair"
		}
		fmt.Fprintf(out, "Scanned %d users and %d projects\n", report.UsersScanned, report.ProjectsScanned)
		for _, r := range report.Repairs {
			fmt.Fprintf(out, "  %s: user %s, project %s\n", r.Action, r.UserID, r.ProjectID)
		}
		fmt.Fprintf(out, "%s %d reference(s)\n", verb, len(report.Repairs))
		return nil
	},
}
