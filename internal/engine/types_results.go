package engine

import (
	"time"

	"github.com/danieljhkim/sysextctl/internal/health"
	"github.com/danieljhkim/sysextctl/internal/planner"
	"github.com/danieljhkim/sysextctl/internal/state"
)

// SkippedImage is a desired image left out of the plan.
type SkippedImage struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// StagedImage is an image placed into the managed directory.
type StagedImage struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Path   string `json:"path"`
}

// ReconcileResult represents the result of a reconciliation.
type ReconcileResult struct {
	// Plan is the executed plan
	Plan *planner.Plan `json:"plan"`

	// Staged lists the images placed into the managed directory
	Staged []StagedImage `json:"staged"`

	// Removed lists the storage paths deleted from the managed directory
	Removed []string `json:"removed"`

	// Refreshed reports whether the overlay tool was refreshed
	Refreshed bool `json:"refreshed"`

	// Skipped lists desired images that were not considered
	Skipped []SkippedImage `json:"skipped,omitempty"`

	// Snapshot is the observed snapshot after the run
	Snapshot state.Snapshot `json:"snapshot"`

	// Servicing is the servicing type of the run
	Servicing health.ServicingType `json:"servicingType"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Changed reports whether the run mutated the managed directory.
func (r *ReconcileResult) Changed() bool {
	return len(r.Staged) > 0 || len(r.Removed) > 0
}

// PlanResult represents a previewed reconciliation.
type PlanResult struct {
	// Plan is the plan that Reconcile would execute
	Plan *planner.Plan `json:"plan"`

	// Observed is the snapshot the plan was computed against
	Observed state.Snapshot `json:"observed"`

	// Skipped lists desired images that were not considered
	Skipped []SkippedImage `json:"skipped,omitempty"`

	// RefreshPending is set when a previous run changed the managed
	// directory without a successful refresh; Reconcile will refresh even
	// if the plan is empty
	RefreshPending bool `json:"refreshPending,omitempty"`
}

// StatusResult represents the observed state of the host.
type StatusResult struct {
	// SnapshotPath is where the snapshot is persisted
	SnapshotPath string `json:"snapshotPath"`

	// StorageDir is the managed extension directory
	StorageDir string `json:"storageDir"`

	// Observed is the persisted snapshot
	Observed state.Snapshot `json:"observed"`

	// RefreshPending reports a refresh still owed by a previous run
	RefreshPending bool `json:"refreshPending"`

	// Live is a fresh probe, present when requested
	Live state.Snapshot `json:"live,omitempty"`

	// Drift lists storage paths present in only one of Observed and Live
	Drift []string `json:"drift,omitempty"`
}
