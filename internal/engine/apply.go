package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/danieljhkim/sysextctl/internal/hash"
	"github.com/danieljhkim/sysextctl/internal/planner"
)

const (
	stagingPrefix = ".staging-"
	imageSuffix   = ".raw"
)

// targetPath is the managed location of an image named name.
func (e *Engine) targetPath(name string) string {
	return filepath.Join(e.paths.StorageDir, name+imageSuffix)
}

// Algorithm steps:
// 1. Reject unmerge entries without a storage path
// 2. Stage every merge into a private directory and verify each copy
// 3. Rename the staged images into place
// 4. Remove unmerged images, skipping paths step 3 replaced
// 5. Refresh the overlay tool once
// 6. Re-probe and persist the observed snapshot
//
// A failure after the managed directory changed marks a refresh pending, so
// the next run re-probes instead of trusting the old snapshot.
func (e *Engine) apply(ctx context.Context, plan *planner.Plan, result *ReconcileResult) (err error) {
	for _, o := range plan.ToUnmerge {
		if o.StoragePath == "" {
			return fmt.Errorf("%w: unmerge entry %s has no storage path", ErrInternal, o)
		}
	}

	if err := e.fs.MkdirAll(e.paths.StorageDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", ErrStaging, e.paths.StorageDir, err)
	}
	e.pruneStaging()

	dirty := false
	defer func() {
		if err == nil || !dirty {
			return
		}
		if perr := e.store.MarkPending(err.Error()); perr != nil {
			err = errors.Join(err, perr)
		}
	}()

	staged, err := e.stage(plan.ToMerge)
	result.Staged = append(result.Staged, staged...)
	if len(staged) > 0 {
		dirty = true
	}
	if err != nil {
		return err
	}

	replaced := make(map[string]bool, len(staged))
	for _, s := range staged {
		replaced[s.Path] = true
	}

	for _, o := range plan.ToUnmerge {
		if replaced[o.StoragePath] {
			e.logger.Debug().Str("path", o.StoragePath).Msg("unmerge path already replaced by a staged image")
			continue
		}
		removed, err := e.removeImage(o.StoragePath)
		if err != nil {
			return err
		}
		if !removed {
			continue
		}
		dirty = true
		e.logger.Info().Str("extension", o.String()).Str("path", o.StoragePath).Msg("removed extension image")
		result.Removed = append(result.Removed, o.StoragePath)
	}

	dirty = true
	if err := e.refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRefresh, err)
	}
	result.Refreshed = true

	snap, err := e.store.Probe(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe extensions after refresh: %w", err)
	}
	if err := e.store.Save(snap); err != nil {
		return err
	}
	result.Snapshot = snap
	return e.store.ClearPending()
}

// stage copies every merge into a fresh staging directory and renames the
// copies into place only after all of them verified. The staging directory
// is always removed.
func (e *Engine) stage(merges []planner.Merge) ([]StagedImage, error) {
	if len(merges) == 0 {
		return nil, nil
	}

	dir := filepath.Join(e.paths.StorageDir, stagingPrefix+uuid.NewString())
	if err := e.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create staging directory: %v", ErrStaging, err)
	}
	defer func() {
		if err := e.fs.RemoveAll(dir); err != nil {
			e.logger.Warn().Err(err).Str("path", dir).Msg("failed to remove staging directory")
		}
	}()

	type pending struct {
		tmp string
		img StagedImage
	}
	pendings := make([]pending, 0, len(merges))
	for _, m := range merges {
		tmp := filepath.Join(dir, m.Name+imageSuffix)
		if err := e.fs.CopyFile(m.Source, tmp); err != nil {
			return nil, fmt.Errorf("%w: failed to copy %s: %v", ErrStaging, m.Source, err)
		}
		same, err := hash.SameContent(e.hasher, m.Source, tmp)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to verify copy of %s: %v", ErrStaging, m.Source, err)
		}
		if !same {
			return nil, fmt.Errorf("%w: copy of %s does not match its source", ErrStaging, m.Source)
		}
		pendings = append(pendings, pending{
			tmp: tmp,
			img: StagedImage{Name: m.Name, Source: m.Source, Path: e.targetPath(m.Name)},
		})
	}

	staged := make([]StagedImage, 0, len(pendings))
	for _, p := range pendings {
		if err := e.fs.Rename(p.tmp, p.img.Path); err != nil {
			return staged, fmt.Errorf("%w: failed to commit %s (%d of %d committed): %v",
				ErrStaging, p.img.Path, len(staged), len(pendings), err)
		}
		e.logger.Info().Str("name", p.img.Name).Str("source", p.img.Source).Str("path", p.img.Path).Msg("staged extension image")
		staged = append(staged, p.img)
	}
	return staged, nil
}

// pruneStaging removes staging directories left by an interrupted run.
func (e *Engine) pruneStaging() {
	entries, err := e.fs.ReadDir(e.paths.StorageDir)
	if err != nil {
		e.logger.Warn().Err(err).Str("path", e.paths.StorageDir).Msg("failed to scan for stale staging directories")
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), stagingPrefix) {
			continue
		}
		path := filepath.Join(e.paths.StorageDir, entry.Name())
		if err := e.fs.RemoveAll(path); err != nil {
			e.logger.Warn().Err(err).Str("path", path).Msg("failed to remove stale staging directory")
			continue
		}
		e.logger.Info().Str("path", path).Msg("removed stale staging directory")
	}
}

// removeImage deletes an extension image or directory and reports whether
// anything was there. A path that is already gone is logged and ignored; the
// re-probe records the truth.
func (e *Engine) removeImage(path string) (bool, error) {
	info, err := e.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			e.logger.Warn().Str("path", path).Msg("unmerged extension image is already gone")
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to stat %s: %v", ErrStaging, path, err)
	}

	if info.IsDir() {
		err = e.fs.RemoveAll(path)
	} else {
		err = e.fs.Remove(path)
	}
	if err != nil {
		return false, fmt.Errorf("%w: failed to remove %s: %v", ErrStaging, path, err)
	}
	return true, nil
}
