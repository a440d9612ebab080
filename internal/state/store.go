package state

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/sysextctl/internal/fsops"
	"github.com/danieljhkim/sysextctl/internal/identity"
	"github.com/danieljhkim/sysextctl/internal/sysext"
)

// ObservedStore provides the narrow contract for the observed-state snapshot.
type ObservedStore interface {
	// Load returns the persisted snapshot, bootstrapping it if absent.
	Load(ctx context.Context) (Snapshot, error)

	// Save persists the snapshot atomically.
	Save(s Snapshot) error

	// Probe derives a fresh snapshot from the live system without persisting it.
	Probe(ctx context.Context) (Snapshot, error)

	// MarkPending records that the managed directory changed without a
	// successful refresh. Until ClearPending, Load re-probes.
	MarkPending(reason string) error

	// Pending reports whether a refresh is still owed.
	Pending() (bool, error)

	// ClearPending drops the marker written by MarkPending.
	ClearPending() error
}

// Resolver resolves the identity of a live extension.
type Resolver interface {
	Extract(ctx context.Context, imagePath string) (*identity.Identity, error)
	ExtractDir(root string) (*identity.Identity, error)
}

// FileStore implements ObservedStore with a JSON file.
type FileStore struct {
	fs       fsops.FS
	path     string
	lister   sysext.Lister
	resolver Resolver
	logger   zerolog.Logger
}

// NewFileStore creates a FileStore persisting to path.
func NewFileStore(fs fsops.FS, path string, lister sysext.Lister, resolver Resolver, logger zerolog.Logger) *FileStore {
	return &FileStore{
		fs:       fs,
		path:     path,
		lister:   lister,
		resolver: resolver,
		logger:   logger,
	}
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// PendingPath returns the location of the pending-refresh marker.
func (s *FileStore) PendingPath() string {
	return s.path + ".pending"
}

// Load returns the persisted snapshot. When no snapshot file exists, or a
// pending marker says the file may be stale, the live system is probed and
// the result is persisted before it is returned.
func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	pending, err := s.Pending()
	if err != nil {
		return nil, err
	}
	if pending {
		s.logger.Info().Str("path", s.PendingPath()).Msg("previous run did not finish; probing live extensions")
		return s.reprobe(ctx)
	}

	data, err := s.fs.ReadFile(s.path)
	if err == nil {
		snap, err := DecodeSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.path, err)
		}
		s.logger.Debug().Str("path", s.path).Int("entries", len(snap)).Msg("loaded observed snapshot")
		return snap, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrStore, s.path, err)
	}

	s.logger.Info().Str("path", s.path).Msg("no observed snapshot; probing live extensions")
	return s.reprobe(ctx)
}

func (s *FileStore) reprobe(ctx context.Context) (Snapshot, error) {
	snap, err := s.Probe(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Save(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// MarkPending writes the pending marker with reason as its content.
func (s *FileStore) MarkPending(reason string) error {
	if err := s.fs.AtomicWrite(s.PendingPath(), []byte(reason+"\n"), 0644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", ErrStore, s.PendingPath(), err)
	}
	s.logger.Warn().Str("path", s.PendingPath()).Str("reason", reason).Msg("marked refresh pending")
	return nil
}

func (s *FileStore) Pending() (bool, error) {
	ok, err := s.fs.Exists(s.PendingPath())
	if err != nil {
		return false, fmt.Errorf("%w: failed to check %s: %v", ErrStore, s.PendingPath(), err)
	}
	return ok, nil
}

func (s *FileStore) ClearPending() error {
	if err := s.fs.Remove(s.PendingPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: failed to remove %s: %v", ErrStore, s.PendingPath(), err)
	}
	return nil
}

// Save validates and persists the snapshot atomically.
func (s *FileStore) Save(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	data, err := snap.Encode()
	if err != nil {
		return err
	}
	if err := s.fs.AtomicWrite(s.path, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", ErrStore, s.path, err)
	}
	s.logger.Debug().Str("path", s.path).Int("entries", len(snap)).Msg("saved observed snapshot")
	return nil
}

// Probe lists the live extensions and resolves the identity of each from its
// storage path. Directory extensions are read in place; images are mounted.
func (s *FileStore) Probe(ctx context.Context) (Snapshot, error) {
	entries, err := s.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	snap := make(Snapshot, 0, len(entries))
	for _, entry := range entries {
		id, err := s.resolveEntry(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to resolve live extension %s: %w", ErrStore, entry.Name, err)
		}
		id.StoragePath = entry.Path
		s.logger.Debug().Str("extension", id.String()).Str("path", entry.Path).Msg("probed live extension")
		snap = append(snap, *id)
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *FileStore) resolveEntry(ctx context.Context, entry sysext.Entry) (*identity.Identity, error) {
	if entry.Path == "" {
		return nil, fmt.Errorf("overlay tool reported no path for %s", entry.Name)
	}
	info, err := s.fs.Stat(entry.Path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return s.resolver.ExtractDir(entry.Path)
	}
	return s.resolver.Extract(ctx, entry.Path)
}
