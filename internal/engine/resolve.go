package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danieljhkim/sysextctl/internal/hash"
	"github.com/danieljhkim/sysextctl/internal/identity"
	"github.com/danieljhkim/sysextctl/internal/planner"
	"github.com/danieljhkim/sysextctl/internal/state"
)

// resolve reads the identity of every source, in order. Images with a bad
// descriptor are skipped when skipInvalid is set; every other failure is
// fatal.
func (e *Engine) resolve(ctx context.Context, sources []string, skipInvalid bool) ([]planner.Candidate, []SkippedImage, error) {
	candidates := make([]planner.Candidate, 0, len(sources))
	var skipped []SkippedImage

	for _, src := range sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return nil, nil, fmt.Errorf("%w %s: %v", ErrResolve, src, err)
		}

		id, err := e.resolver.Extract(ctx, abs)
		if err != nil {
			if skipInvalid && isInvalidImage(err) {
				e.logger.Warn().Err(err).Str("source", abs).Msg("skipping invalid image")
				skipped = append(skipped, SkippedImage{Source: abs, Reason: err.Error()})
				continue
			}
			return nil, nil, fmt.Errorf("%w %s: %w", ErrResolve, abs, err)
		}

		c := planner.Candidate{Identity: *id, Source: abs}
		c.Identity.StoragePath = ""
		e.logger.Debug().Str("source", abs).Str("extension", c.Identity.String()).Msg("resolved image")
		candidates = append(candidates, c)
	}

	return candidates, skipped, nil
}

func isInvalidImage(err error) bool {
	return errors.Is(err, identity.ErrMalformedImage) || errors.Is(err, identity.ErrNaming)
}

// prepare resolves the desired state and diffs it against observed.
func (e *Engine) prepare(ctx context.Context, desired DesiredState, skipInvalid bool, observed state.Snapshot) (*planner.Plan, []SkippedImage, error) {
	add, skippedAdd, err := e.resolve(ctx, desired.Add, skipInvalid)
	if err != nil {
		return nil, nil, err
	}
	remove, skippedRemove, err := e.resolve(ctx, desired.Remove, skipInvalid)
	if err != nil {
		return nil, nil, err
	}
	skipped := append(skippedAdd, skippedRemove...)

	plan := planner.Diff(add, remove, observed)
	for _, s := range skipped {
		plan.AddWarning(planner.Warning{
			Kind:    planner.WarnSkippedInvalid,
			Source:  s.Source,
			Message: s.Reason,
		})
	}
	for _, w := range plan.Warnings {
		e.logger.Warn().Str("kind", string(w.Kind)).Str("source", w.Source).Msg(w.Message)
	}

	if err := e.adoptKeyless(plan, observed); err != nil {
		return plan, skipped, err
	}
	if err := e.checkConflicts(plan, observed); err != nil {
		return plan, skipped, err
	}
	return plan, skipped, nil
}

// adoptKeyless pairs each keyless merge with the keyless entry already stored
// at its target path. Identical content drops the merge; different content
// replaces the entry in place.
func (e *Engine) adoptKeyless(plan *planner.Plan, observed state.Snapshot) error {
	stored := make(map[string]identity.Identity)
	for _, o := range observed {
		if !o.HasKey() {
			stored[o.StoragePath] = o
		}
	}
	if len(stored) == 0 {
		return nil
	}

	unmerged := make(map[string]bool, len(plan.ToUnmerge))
	for _, o := range plan.ToUnmerge {
		unmerged[o.StoragePath] = true
	}

	kept := make([]planner.Merge, 0, len(plan.ToMerge))
	for _, m := range plan.ToMerge {
		target := e.targetPath(m.Name)
		o, ok := stored[target]
		if m.Identity.HasKey() || !ok {
			kept = append(kept, m)
			continue
		}

		same, err := e.sameAsTarget(m.Source, target)
		if err != nil {
			return err
		}
		if same {
			e.logger.Debug().Str("source", m.Source).Str("path", target).Msg("keyless image already merged")
			continue
		}

		retired := o
		m.Replaces = &retired
		m.Transition = planner.Classify(o.VersionID, m.Identity.VersionID)
		kept = append(kept, m)
		if !unmerged[target] {
			unmerged[target] = true
			plan.ToUnmerge = append(plan.ToUnmerge, o)
		}
	}
	plan.ToMerge = kept
	return nil
}

// sameAsTarget reports whether target is a regular file holding the bytes
// of source. A missing target or a directory never matches.
func (e *Engine) sameAsTarget(source, target string) (bool, error) {
	info, err := e.fs.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to stat %s: %v", ErrStaging, target, err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	same, err := hash.SameContent(e.hasher, source, target)
	if err != nil {
		return false, fmt.Errorf("%w: failed to compare %s with %s: %v", ErrStaging, source, target, err)
	}
	return same, nil
}

// checkConflicts records merges whose target path belongs to something the
// plan does not retire. Two merges with the same target are always fatal.
func (e *Engine) checkConflicts(plan *planner.Plan, observed state.Snapshot) error {
	retiring := make(map[string]bool, len(plan.ToUnmerge))
	for _, o := range plan.ToUnmerge {
		retiring[o.StoragePath] = true
	}
	owners := make(map[string]string, len(observed))
	for _, o := range observed {
		owners[o.StoragePath] = o.String()
	}

	targets := make(map[string]string, len(plan.ToMerge))
	for _, m := range plan.ToMerge {
		target := e.targetPath(m.Name)
		if prev, ok := targets[target]; ok {
			return fmt.Errorf("%w: %s and %s both stage to %s", ErrConflict, prev, m.Source, target)
		}
		targets[target] = m.Source

		if retiring[target] {
			continue
		}
		exists, err := e.fs.Exists(target)
		if err != nil {
			return fmt.Errorf("%w: failed to check %s: %v", ErrStaging, target, err)
		}
		if exists {
			same, err := e.sameAsTarget(m.Source, target)
			if err != nil {
				return err
			}
			if same {
				e.logger.Debug().Str("source", m.Source).Str("path", target).Msg("target already holds this image")
				continue
			}
		}
		if owner, ok := owners[target]; ok {
			plan.AddConflict(planner.Conflict{
				Path:     target,
				Reason:   "path belongs to a merged extension that is not being replaced",
				Existing: owner,
				Incoming: m.Identity.String(),
			})
			continue
		}
		if exists {
			plan.AddConflict(planner.Conflict{
				Path:     target,
				Reason:   "path is occupied by a file the snapshot does not know",
				Incoming: m.Identity.String(),
			})
		}
	}
	return nil
}
