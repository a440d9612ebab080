// Package health models the post-servicing health checks of a host
// configuration. Checks are a closed set of variants decoded by shape: a
// mapping with a systemdServices key is a SystemdCheck, anything else is a
// Script. No YAML tags are used in either direction.
package health

import (
	"fmt"
	"slices"
	"strings"
)

// ServicingType is the kind of OS lifecycle operation in progress.
type ServicingType string

// Servicing types
const (
	NoActiveServicing ServicingType = "none"
	CleanInstall      ServicingType = "clean-install"
	AbUpdate          ServicingType = "ab-update"
	RuntimeUpdate     ServicingType = "runtime-update"

	// AllServicing selects every servicing type in a script's runOn list.
	AllServicing ServicingType = "all"
)

// ParseServicingType parses a servicing type name. Empty means none.
func ParseServicingType(raw string) (ServicingType, error) {
	switch st := ServicingType(strings.ToLower(strings.TrimSpace(raw))); st {
	case "":
		return NoActiveServicing, nil
	case NoActiveServicing, CleanInstall, AbUpdate, RuntimeUpdate:
		return st, nil
	default:
		return "", fmt.Errorf("unknown servicing type %q", raw)
	}
}

// Check is one health check. The set of implementations is closed.
type Check interface {
	// CheckName returns the display name of the check.
	CheckName() string

	// ShouldRun reports whether the check applies to the servicing type.
	ShouldRun(st ServicingType) bool

	isCheck()
}

// Script runs a script in the target OS.
type Script struct {
	Name        string          `yaml:"name"`
	RunOn       []ServicingType `yaml:"runOn,omitempty"`
	Interpreter string          `yaml:"interpreter,omitempty"`
	Content     string          `yaml:"content,omitempty"`
	Path        string          `yaml:"path,omitempty"`
	Arguments   []string        `yaml:"arguments,omitempty"`
}

// CheckName returns the script name.
func (s Script) CheckName() string { return s.Name }

// ShouldRun reports true only for A/B updates. A runOn list that does not
// select A/B updates disables the script.
func (s Script) ShouldRun(st ServicingType) bool {
	if st != AbUpdate {
		return false
	}
	if len(s.RunOn) == 0 {
		return true
	}
	return slices.Contains(s.RunOn, AbUpdate) || slices.Contains(s.RunOn, AllServicing)
}

func (Script) isCheck() {}

// Validate checks that exactly one script source is set.
func (s Script) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("script check has no name")
	}
	if (s.Content == "") == (s.Path == "") {
		return fmt.Errorf("script check %q must set exactly one of content or path", s.Name)
	}
	return nil
}

// SystemdCheck waits for systemd services to reach a successful state.
type SystemdCheck struct {
	Name            string   `yaml:"name,omitempty"`
	SystemdServices []string `yaml:"systemdServices"`
	TimeoutSeconds  int      `yaml:"timeoutSeconds"`
}

// CheckName returns the check name.
func (c SystemdCheck) CheckName() string { return c.Name }

// ShouldRun reports true only for A/B updates.
func (c SystemdCheck) ShouldRun(st ServicingType) bool {
	return st == AbUpdate
}

func (SystemdCheck) isCheck() {}

// Validate checks that at least one service is named.
func (c SystemdCheck) Validate() error {
	if len(c.SystemdServices) == 0 {
		return fmt.Errorf("systemd check %q lists no services", c.Name)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("systemd check %q has a negative timeout", c.Name)
	}
	return nil
}

// Health holds the checks run before an update is committed.
type Health struct {
	Checks Checks `yaml:"checks,omitempty"`
}

// Select returns the checks that should run for st, in order.
func Select(checks []Check, st ServicingType) []Check {
	var out []Check
	for _, c := range checks {
		if c.ShouldRun(st) {
			out = append(out, c)
		}
	}
	return out
}
