package planner

import (
	"github.com/danieljhkim/sysextctl/internal/identity"
)

// Candidate is a desired image whose identity has been resolved.
type Candidate struct {
	// Identity is the identity read from the image
	Identity identity.Identity

	// Source is where the image was resolved from
	Source string
}

// Merge stages one image into the managed extension directory.
type Merge struct {
	// Name is the logical name the image is stored under
	Name string `json:"name"`

	// Source is the image to copy
	Source string `json:"source"`

	// Identity is the identity of the incoming image
	Identity identity.Identity `json:"identity"`

	// Replaces is the observed entry this merge retires, if any
	Replaces *identity.Identity `json:"replaces,omitempty"`

	// Transition labels the version change
	Transition Transition `json:"transition"`
}

// Warning is a non-fatal planning signal.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	SysextID string      `json:"sysextId,omitempty"`
	Source   string      `json:"source,omitempty"`
	Message  string      `json:"message"`
}

// WarningKind classifies a Warning.
type WarningKind string

// Warning kinds
const (
	WarnRemoveNotPresent      WarningKind = "remove_not_present"
	WarnAddOverriddenByRemove WarningKind = "add_overridden_by_remove"
	WarnDuplicateAdd          WarningKind = "duplicate_add"
	WarnSkippedInvalid        WarningKind = "skipped_invalid_image"
)

// Conflict represents a conflict detected while validating a plan against the
// managed directory.
type Conflict struct {
	// Path is the managed path where the conflict was detected
	Path string `json:"path"`

	// Reason is a human-readable explanation of the conflict
	Reason string `json:"reason"`

	// Existing describes what currently owns the path
	Existing string `json:"existing,omitempty"`

	// Incoming describes what the plan wants to place there
	Incoming string `json:"incoming,omitempty"`
}

// Plan is the output of Diff.
type Plan struct {
	// ToMerge is the ordered list of images to stage
	ToMerge []Merge `json:"toMerge"`

	// ToUnmerge is the ordered list of observed entries to remove
	ToUnmerge []identity.Identity `json:"toUnmerge"`

	// Warnings are non-fatal signals raised while planning
	Warnings []Warning `json:"warnings"`

	// Conflicts is a list of detected conflicts (empty if no conflicts)
	Conflicts []Conflict `json:"conflicts"`
}

// NewPlan creates a new empty Plan.
func NewPlan() *Plan {
	return &Plan{
		ToMerge:   []Merge{},
		ToUnmerge: []identity.Identity{},
		Warnings:  []Warning{},
		Conflicts: []Conflict{},
	}
}

// Empty reports whether the plan changes nothing.
func (p *Plan) Empty() bool {
	return len(p.ToMerge) == 0 && len(p.ToUnmerge) == 0
}

// HasConflicts returns true if the plan has any conflicts.
func (p *Plan) HasConflicts() bool {
	return len(p.Conflicts) > 0
}

// AddWarning adds a warning to the plan.
func (p *Plan) AddWarning(w Warning) {
	p.Warnings = append(p.Warnings, w)
}

// AddConflict adds a conflict to the plan.
func (p *Plan) AddConflict(c Conflict) {
	p.Conflicts = append(p.Conflicts, c)
}
