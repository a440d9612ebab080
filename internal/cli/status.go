package cli

import (
	"github.com/spf13/cobra"

	"github.com/danieljhkim/sysextctl/internal/engine"
	"github.com/danieljhkim/sysextctl/internal/state"
)

var statusLive bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the observed extension state",
	Long: `Display the observed snapshot. With --live the running system is probed
as well and entries that differ between the two are reported as drift.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}

		result, err := eng.Status(cmd.Context(), &engine.StatusRequest{Live: statusLive})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(result)
		}

		PrintSection("Observed extensions")
		PrintLabelValue("Snapshot", result.SnapshotPath)
		PrintLabelValue("Storage", result.StorageDir)
		if result.RefreshPending {
			PrintWarning("A previous reconcile changed the managed directory without a successful refresh; the next reconcile will refresh")
		}
		PrintInfo("")
		printSnapshot(result.Observed)

		if statusLive {
			PrintSection("Live extensions")
			printSnapshot(result.Live)
			PrintInfo("")
			if len(result.Drift) == 0 {
				PrintSuccess("No drift")
			} else {
				PrintWarning("Drift detected at " + PrintCount(len(result.Drift), "path", "paths"))
				PrintList(result.Drift, 1)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusLive, "live", false, "Also probe the live system and report drift")
}

func printSnapshot(snap state.Snapshot) {
	if len(snap) == 0 {
		PrintEmptyState("No extensions")
		return
	}
	rows := make([][]string, 0, len(snap))
	for _, id := range snap {
		sysextID := id.SysextID
		if sysextID == "" {
			sysextID = "-"
		}
		rows = append(rows, []string{id.Name, sysextID, id.VersionID, id.StoragePath})
	}
	PrintTable([]string{"NAME", "SYSEXT ID", "VERSION", "PATH"}, rows)
}
