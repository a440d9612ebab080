// Package engine provides the reconciliation logic for sysextctl.
//
// The engine is the orchestration layer between CLI commands and the
// lower-level packages. It resolves the identity of every desired image,
// diffs the result against the observed snapshot and applies the plan to
// the managed extension directory.
//
// Key components:
//   - Engine: main orchestrator, holding the snapshot lock for each run
//   - Reconcile/Plan: converge or preview the desired state
//   - apply: transactional staging, removal and the single refresh
//   - Status: report the observed snapshot
package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/sysextctl/internal/clock"
	"github.com/danieljhkim/sysextctl/internal/config"
	"github.com/danieljhkim/sysextctl/internal/fsops"
	"github.com/danieljhkim/sysextctl/internal/hash"
	"github.com/danieljhkim/sysextctl/internal/identity"
	"github.com/danieljhkim/sysextctl/internal/state"
	"github.com/danieljhkim/sysextctl/internal/sysext"
)

// Resolver reads the identity embedded in an image file.
type Resolver interface {
	Extract(ctx context.Context, imagePath string) (*identity.Identity, error)
}

// Engine orchestrates all sysextctl operations.
// It is the main API surface called by the CLI.
type Engine struct {
	fs        fsops.FS
	hasher    hash.Hasher
	clock     clock.Clock
	resolver  Resolver
	store     state.ObservedStore
	refresher sysext.Refresher
	paths     config.Paths
	logger    zerolog.Logger
}

// New creates a new Engine with the given dependencies.
func New(
	fs fsops.FS,
	hasher hash.Hasher,
	clk clock.Clock,
	resolver Resolver,
	store state.ObservedStore,
	refresher sysext.Refresher,
	paths config.Paths,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		fs:        fs,
		hasher:    hasher,
		clock:     clk,
		resolver:  resolver,
		store:     store,
		refresher: refresher,
		paths:     paths,
		logger:    logger,
	}
}

// withLock runs fn while holding the snapshot lock.
func (e *Engine) withLock(fn func() error) error {
	lock, err := state.AcquireLock(e.paths.LockPath, e.clock, e.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			e.logger.Warn().Err(err).Str("path", e.paths.LockPath).Msg("failed to release lock")
		}
	}()
	return fn()
}
