package engine

import "github.com/danieljhkim/sysextctl/internal/health"

// DesiredState names the images to merge and to unmerge by local path.
type DesiredState struct {
	// Add lists images that should be merged, in priority order
	Add []string

	// Remove lists images whose extensions should be unmerged
	Remove []string
}

// ReconcileRequest represents a request to converge the host.
type ReconcileRequest struct {
	// Desired is the desired add and remove lists
	Desired DesiredState

	// SkipInvalid skips images with a malformed or unnamed descriptor
	// instead of failing the run
	SkipInvalid bool

	// Force overwrites managed paths owned by entries the plan keeps
	Force bool

	// Servicing is the servicing type the run belongs to
	Servicing health.ServicingType
}

// PlanRequest represents a request to preview a reconciliation.
type PlanRequest struct {
	// Desired is the desired add and remove lists
	Desired DesiredState

	// SkipInvalid skips images with a malformed or unnamed descriptor
	SkipInvalid bool
}

// StatusRequest represents a request for the observed state.
type StatusRequest struct {
	// Live also probes the live system and reports drift
	Live bool
}
