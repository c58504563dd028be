package assignments

import "github.com/spf13/cobra"

// AssignmentsCmd groups maintenance commands for developer assignments.
var AssignmentsCmd = &cobra.Command{
	Use:   "assignments",
	Short: "Maintain developer assignments",
}

func init() {
	reconcileCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Report repairs without writing them")
	reconcileCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the report as JSON")

	AssignmentsCmd.AddCommand(reconcileCmd)
}
