package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/sysextctl/internal/state"
)

// Status returns the persisted snapshot and, on request, a live probe.
func (e *Engine) Status(ctx context.Context, req *StatusRequest) (*StatusResult, error) {
	result := &StatusResult{
		SnapshotPath: e.paths.SnapshotPath,
		StorageDir:   e.paths.StorageDir,
	}

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

		if !req.Live {
			return nil
		}
		live, err := e.store.Probe(ctx)
		if err != nil {
			return fmt.Errorf("failed to probe live extensions: %w", err)
		}
		result.Live = live
		result.Drift = drift(observed, live)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// drift returns storage paths whose entry differs between a and b, in the
// order they first appear.
func drift(a, b state.Snapshot) []string {
	index := func(s state.Snapshot) map[string]string {
		m := make(map[string]string, len(s))
		for _, id := range s {
			m[id.StoragePath] = id.String()
		}
		return m
	}
	ia, ib := index(a), index(b)

	var out []string
	seen := make(map[string]bool)
	for _, s := range []state.Snapshot{a, b} {
		for _, id := range s {
			p := id.StoragePath
			if seen[p] {
				continue
			}
			seen[p] = true
			if ia[p] != ib[p] {
				out = append(out, p)
			}
		}
	}
	return out
}
