package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/sysextctl/internal/engine"
	"github.com/danieljhkim/sysextctl/internal/planner"
)

var planFlags desiredFlags

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what reconcile would change",
	Long: `Resolve the identity of every desired image and diff it against the
observed snapshot without touching the managed extension directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := planFlags.load()
		if err != nil {
			return err
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Plan(cmd.Context(), &engine.PlanRequest{
			Desired:     in.desired,
			SkipInvalid: planFlags.skipInvalid,
		})
		if jsonOutput {
			if result != nil && result.Plan != nil {
				if jerr := outputJSON(result); jerr != nil {
					return jerr
				}
			}
			return err
		}

		if result != nil && result.Plan != nil {
			printPlan(result.Plan)
			if result.RefreshPending {
				PrintWarning("A refresh is still pending from a previous run; reconcile will perform it")
			}
		}
		return err
	},
}

func init() {
	planFlags.register(planCmd)
}

// printPlan renders a plan as a table followed by its warnings.
func printPlan(plan *planner.Plan) {
	PrintSection("Plan")

	if plan.Empty() {
		PrintEmptyState("No changes; desired state already satisfied")
	} else {
		rows := make([][]string, 0, len(plan.ToMerge)+len(plan.ToUnmerge))
		for _, m := range plan.ToMerge {
			version := m.Identity.VersionID
			if m.Replaces != nil {
				version = fmt.Sprintf("%s -> %s", m.Replaces.VersionID, m.Identity.VersionID)
			}
			rows = append(rows, []string{"merge", m.Name, version, string(m.Transition), m.Source})
		}
		for _, o := range plan.ToUnmerge {
			rows = append(rows, []string{"unmerge", o.Name, o.VersionID, "", o.StoragePath})
		}
		PrintTable([]string{"ACTION", "NAME", "VERSION", "TRANSITION", "PATH"}, rows)
	}

	if len(plan.Warnings) > 0 {
		fmt.Fprintln(stdout)
		for _, w := range plan.Warnings {
			PrintWarning(w.Message)
		}
	}
	if plan.HasConflicts() {
		fmt.Fprintln(stdout)
		for _, c := range plan.Conflicts {
			msg := fmt.Sprintf("conflict at %s: %s", c.Path, c.Reason)
			if c.Existing != "" {
				msg += fmt.Sprintf(" (held by %s)", c.Existing)
			}
			PrintWarning(msg)
		}
	}
}
