package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/sysextctl/internal/identity"
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>...",
	Short: "Read the identity embedded in extension images",
	Long: `Attach each image read-only, read its extension-release descriptor and
print the identity. Directory extensions are read in place.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := loadPaths()
		if err != nil {
			return err
		}
		extractor := newExtractor(paths, newLogger(paths))

		ids := make([]*identity.Identity, 0, len(args))
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			var id *identity.Identity
			if info.IsDir() {
				id, err = extractor.ExtractDir(path)
			} else {
				id, err = extractor.Extract(cmd.Context(), path)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			ids = append(ids, id)
		}

		if jsonOutput {
			return outputJSON(ids)
		}

		for i, id := range ids {
			PrintSection(args[i])
			printIdentity(id)
		}
		return nil
	},
}

func printIdentity(id *identity.Identity) {
	PrintLabelValue("Name", id.Name)
	fields := []struct{ label, value string }{
		{"Sysext ID", id.SysextID},
		{"Version", id.VersionID},
		{"OS ID", id.OSID},
		{"Scope", id.Scope},
		{"Architecture", id.Architecture},
	}
	for _, f := range fields {
		if f.value != "" {
			PrintLabelValue(f.label, f.value)
		}
	}
	if !id.HasKey() {
		PrintWarning("no SYSEXT_ID; this image never matches another")
	}
}
