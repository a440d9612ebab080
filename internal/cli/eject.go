package cli

import (
	"github.com/spf13/cobra"

	"github.com/danieljhkim/sysextctl/internal/execx"
	"github.com/danieljhkim/sysextctl/internal/media"
)

var ejectCmdline string

// ejectOutput is the JSON shape of eject-media.
type ejectOutput struct {
	BootType         media.BootType `json:"bootType"`
	RemovableDevices bool           `json:"removableDevices"`
	Ejected          bool           `json:"ejected"`
}

var ejectMediaCmd = &cobra.Command{
	Use:   "eject-media",
	Short: "Eject installation media when the system runs from a RAM disk",
	Long: `Inspect the kernel command line and eject the installation media only
when the root filesystem lives in RAM. Live CD-ROM boots and persistent
installs are left alone. Failing to eject is reported, not an error.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := loadPaths()
		if err != nil {
			return err
		}
		logger := newLogger(paths)

		bootType, err := media.ReadBootType(ejectCmdline)
		if err != nil {
			return err
		}

		ejector := media.NewEjector(execx.NewRealRunner(), ejectCmdline, logger)
		out := ejectOutput{
			BootType:         bootType,
			RemovableDevices: ejector.HasRemovableDevices(cmd.Context()),
			Ejected:          ejector.EjectSmart(cmd.Context()),
		}

		if jsonOutput {
			return outputJSON(out)
		}

		PrintLabelValue("Boot type", string(out.BootType))
		if out.RemovableDevices {
			PrintLabelValue("Removable devices", "yes")
		} else {
			PrintLabelValue("Removable devices", "no")
		}
		switch {
		case out.Ejected:
			PrintSuccess("Installation media ejected")
		case out.BootType == media.RamDisk:
			PrintWarning("Could not eject installation media; remove it manually before rebooting")
		default:
			PrintInfo("Installation media left in place")
		}
		return nil
	},
}

func init() {
	ejectMediaCmd.Flags().StringVar(&ejectCmdline, "cmdline", media.CmdlinePath, "Kernel command line file")
}
