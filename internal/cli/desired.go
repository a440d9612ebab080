package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/sysextctl/internal/engine"
	"github.com/danieljhkim/sysextctl/internal/health"
	"github.com/danieljhkim/sysextctl/internal/hostconfig"
)

// desiredFlags are the flags shared by reconcile and plan.
type desiredFlags struct {
	hostConfig  string
	add         []string
	remove      []string
	skipInvalid bool
	servicing   string
}

func (f *desiredFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.hostConfig, "host-config", "f", "", "Host configuration document listing sysexts to add and remove")
	cmd.Flags().StringArrayVar(&f.add, "add", nil, "Image to merge (repeatable, appended after the host configuration)")
	cmd.Flags().StringArrayVar(&f.remove, "remove", nil, "Image whose extension to unmerge (repeatable)")
	cmd.Flags().BoolVar(&f.skipInvalid, "skip-invalid", false, "Skip images with a malformed or unnamed release descriptor")
	cmd.Flags().StringVar(&f.servicing, "servicing-type", "", "Servicing type (none, clean-install, ab-update, runtime-update)")
}

// desiredInput is the resolved input of a reconciliation.
type desiredInput struct {
	desired   engine.DesiredState
	servicing health.ServicingType
	checks    health.Checks
}

// load merges the host configuration with the command-line lists. The
// --servicing-type flag overrides the document.
func (f *desiredFlags) load() (*desiredInput, error) {
	in := &desiredInput{servicing: health.NoActiveServicing}

	if f.hostConfig != "" {
		cfg, err := hostconfig.Load(f.hostConfig)
		if err != nil {
			return nil, err
		}
		ds, err := cfg.Desired()
		if err != nil {
			return nil, err
		}
		in.desired = engine.DesiredState{Add: ds.Add, Remove: ds.Remove}
		in.servicing = cfg.Servicing()
		in.checks = cfg.Health.Checks
	}

	in.desired.Add = append(in.desired.Add, f.add...)
	in.desired.Remove = append(in.desired.Remove, f.remove...)

	if f.servicing != "" {
		st, err := health.ParseServicingType(f.servicing)
		if err != nil {
			return nil, fmt.Errorf("invalid --servicing-type: %w", err)
		}
		in.servicing = st
	}
	return in, nil
}

// checkSummary describes a selected health check.
type checkSummary struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// selectedChecks returns the checks that apply to the servicing type.
func (in *desiredInput) selectedChecks() []checkSummary {
	out := []checkSummary{}
	for _, c := range health.Select(in.checks, in.servicing) {
		kind := "script"
		if _, ok := c.(health.SystemdCheck); ok {
			kind = "systemd"
		}
		out = append(out, checkSummary{Name: c.CheckName(), Kind: kind})
	}
	return out
}
