package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/sysextctl/internal/engine"
)

var (
	reconcileFlags desiredFlags
	reconcileForce bool
)

// reconcileOutput is the JSON shape of a reconciliation.
type reconcileOutput struct {
	*engine.ReconcileResult
	HealthChecks []checkSummary `json:"healthChecks"`
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Converge merged extensions onto the desired state",
	Long: `Stage the images the plan merges into the managed extension directory,
delete the images it unmerges, refresh the overlay once and record the new
observed snapshot.

Health checks that apply to the servicing type are listed afterwards; running
them is left to the caller.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := reconcileFlags.load()
		if err != nil {
			return err
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Reconcile(cmd.Context(), &engine.ReconcileRequest{
			Desired:     in.desired,
			SkipInvalid: reconcileFlags.skipInvalid,
			Force:       reconcileForce,
			Servicing:   in.servicing,
		})
		checks := in.selectedChecks()

		if jsonOutput {
			if result != nil {
				if jerr := outputJSON(reconcileOutput{ReconcileResult: result, HealthChecks: checks}); jerr != nil {
					return jerr
				}
			}
			return err
		}

		if result != nil && result.Plan != nil {
			printPlan(result.Plan)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(stdout)
		if result.Changed() {
			PrintSuccess(fmt.Sprintf("Reconciled: %s staged, %s removed",
				PrintCount(len(result.Staged), "image", "images"),
				PrintCount(len(result.Removed), "image", "images")))
		} else {
			PrintSuccess("Nothing to do")
		}

		if len(checks) > 0 {
			PrintSection(fmt.Sprintf("Health checks (%s)", in.servicing))
			items := make([]string, 0, len(checks))
			for _, c := range checks {
				items = append(items, fmt.Sprintf("%s [%s]", c.Name, c.Kind))
			}
			PrintList(items, 1)
		}
		return nil
	},
}

func init() {
	reconcileFlags.register(reconcileCmd)
	reconcileCmd.Flags().BoolVar(&reconcileForce, "force", false, "Overwrite managed paths held by extensions the plan keeps")
}
