package planner

import (
	"fmt"

	"github.com/danieljhkim/sysextctl/internal/identity"
)

// Diff computes the plan converging observed onto the desired add and remove
// lists. Output order follows input order: add-driven entries first, then
// remove-driven unmerges.
func Diff(add, remove []Candidate, observed []identity.Identity) *Plan {
	plan := NewPlan()

	removeKeys := make(map[string]bool, len(remove))
	for _, r := range remove {
		if r.Identity.HasKey() {
			removeKeys[r.Identity.SysextID] = true
		}
	}

	merged := make(map[string]bool, len(add))
	unmerged := make(map[string]bool)
	stageUnmerge := func(o identity.Identity) {
		if unmerged[o.StoragePath] {
			return
		}
		unmerged[o.StoragePath] = true
		plan.ToUnmerge = append(plan.ToUnmerge, o)
	}

	for _, d := range add {
		id := d.Identity

		if !id.HasKey() {
			plan.ToMerge = append(plan.ToMerge, Merge{
				Name:       id.Name,
				Source:     d.Source,
				Identity:   id,
				Transition: TransitionInstall,
			})
			continue
		}

		if removeKeys[id.SysextID] {
			plan.AddWarning(Warning{
				Kind:     WarnAddOverriddenByRemove,
				SysextID: id.SysextID,
				Source:   d.Source,
				Message:  fmt.Sprintf("%s is also listed for removal; removal wins", id.SysextID),
			})
			continue
		}

		if merged[id.SysextID] {
			plan.AddWarning(Warning{
				Kind:     WarnDuplicateAdd,
				SysextID: id.SysextID,
				Source:   d.Source,
				Message:  fmt.Sprintf("%s is listed more than once; keeping the first", id.SysextID),
			})
			continue
		}
		merged[id.SysextID] = true

		o, found := find(observed, id)
		if found && o.VersionID == id.VersionID {
			continue
		}

		m := Merge{
			Name:       id.Name,
			Source:     d.Source,
			Identity:   id,
			Transition: TransitionInstall,
		}
		if found {
			retired := o
			m.Replaces = &retired
			m.Transition = Classify(o.VersionID, id.VersionID)
		}
		plan.ToMerge = append(plan.ToMerge, m)
		if found {
			stageUnmerge(o)
		}
	}

	for _, d := range remove {
		o, found := find(observed, d.Identity)
		if !found {
			plan.AddWarning(Warning{
				Kind:     WarnRemoveNotPresent,
				SysextID: d.Identity.SysextID,
				Source:   d.Source,
				Message:  fmt.Sprintf("%s is not merged; nothing to remove", d.Identity),
			})
			continue
		}
		stageUnmerge(o)
	}

	return plan
}

func find(observed []identity.Identity, id identity.Identity) (identity.Identity, bool) {
	for _, o := range observed {
		if o.SameExtension(id) {
			return o, true
		}
	}
	return identity.Identity{}, false
}
