package planner

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Transition labels how a merge changes the version of an extension.
type Transition string

// Transitions
const (
	TransitionInstall   Transition = "install"
	TransitionUpgrade   Transition = "upgrade"
	TransitionDowngrade Transition = "downgrade"
	TransitionChange    Transition = "change"
)

// Classify labels the move from version from to version to. Versions that do
// not parse as semver, or that compare equal while differing as text, are a
// plain change. The label is informational; Diff decides on string equality.
func Classify(from, to string) Transition {
	fv, err := parseVersion(from)
	if err != nil {
		return TransitionChange
	}
	tv, err := parseVersion(to)
	if err != nil {
		return TransitionChange
	}
	switch fv.Compare(tv) {
	case -1:
		return TransitionUpgrade
	case 1:
		return TransitionDowngrade
	default:
		return TransitionChange
	}
}

func parseVersion(v string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(v, "v"))
}
