package engine

import (
	"context"
	"fmt"
)

// Algorithm steps:
// 1. Acquire the snapshot lock
// 2. Load the observed snapshot, bootstrapping it if absent
// 3. Resolve the identity of every desired image
// 4. Diff desired against observed and check for conflicts
// 5. Apply the plan (if it changes anything or a refresh is still owed)
// 6. Return result
//
// The result is returned alongside any error so callers can report what
// was planned and what was already committed.
func (e *Engine) Reconcile(ctx context.Context, req *ReconcileRequest) (*ReconcileResult, error) {
	result := &ReconcileResult{
		Staged:    []StagedImage{},
		Removed:   []string{},
		Servicing: req.Servicing,
		StartedAt: e.clock.Now(),
	}

	err := e.withLock(func() error {
		pending, err := e.store.Pending()
		if err != nil {
			return err
		}
		observed, err := e.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load observed snapshot: %w", err)
		}
		result.Snapshot = observed

		plan, skipped, err := e.prepare(ctx, req.Desired, req.SkipInvalid, observed)
		result.Plan = plan
		result.Skipped = skipped
		if err != nil {
			return err
		}

		if plan.HasConflicts() {
			if !req.Force {
				return fmt.Errorf("%w: %d conflicts detected", ErrConflict, len(plan.Conflicts))
			}
			e.logger.Warn().Int("conflicts", len(plan.Conflicts)).Msg("overwriting conflicting paths")
		}

		if plan.Empty() {
			if !pending {
				e.logger.Info().Int("observed", len(observed)).Msg("desired state already satisfied")
				return nil
			}
			e.logger.Info().Msg("desired state on disk; finishing refresh left by a previous run")
		}

		e.logger.Info().
			Int("merge", len(plan.ToMerge)).
			Int("unmerge", len(plan.ToUnmerge)).
			Str("servicing", string(req.Servicing)).
			Msg("applying plan")
		return e.apply(ctx, plan, result)
	})

	result.FinishedAt = e.clock.Now()
	return result, err
}

// Plan computes the plan Reconcile would execute without changing the
// managed directory. A missing snapshot is still bootstrapped.
func (e *Engine) Plan(ctx context.Context, req *PlanRequest) (*PlanResult, error) {
	result := &PlanResult{}

	err := e.withLock(func() error {
		pending, err := e.store.Pending()
		if err != nil {
			return err
		}
		result.RefreshPending = pending

		observed, err := e.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load observed snapshot: %w", err)
		}
		result.Observed = observed

		plan, skipped, err := e.prepare(ctx, req.Desired, req.SkipInvalid, observed)
		result.Plan = plan
		result.Skipped = skipped
		return err
	})
	if err != nil {
		return result, err
	}
	return result, nil
}
