package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danieljhkim/sysextctl/internal/identity"
)

var (
	// ErrStore indicates the snapshot cannot be read, written or trusted.
	ErrStore = errors.New("observed-state store failure")

	// ErrLocked indicates another reconciliation holds the lock.
	ErrLocked = errors.New("observed state is locked by another process")
)

// Snapshot is the ordered list of merged extensions. Every entry carries a
// StoragePath and no two entries share a non-empty SysextID.
type Snapshot []identity.Identity

// Validate checks the snapshot invariants.
func (s Snapshot) Validate() error {
	seen := make(map[string]string, len(s))
	for i, entry := range s {
		if entry.StoragePath == "" {
			return fmt.Errorf("%w: entry %d (%s) has no storage path", ErrStore, i, entry.Name)
		}
		if !entry.HasKey() {
			continue
		}
		if prev, ok := seen[entry.SysextID]; ok {
			return fmt.Errorf("%w: sysext ID %q is merged twice (%s and %s)", ErrStore, entry.SysextID, prev, entry.StoragePath)
		}
		seen[entry.SysextID] = entry.StoragePath
	}
	return nil
}

// Find returns the entry sharing id's sysext ID.
func (s Snapshot) Find(id identity.Identity) (identity.Identity, bool) {
	for _, entry := range s {
		if entry.SameExtension(id) {
			return entry, true
		}
	}
	return identity.Identity{}, false
}

// Encode renders the snapshot as the on-disk JSON array.
func (s Snapshot) Encode() ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal snapshot: %v", ErrStore, err)
	}
	return append(data, '\n'), nil
}

// DecodeSnapshot parses the on-disk JSON array. Unknown fields are ignored so
// older and newer engines can read each other's files.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal snapshot: %v", ErrStore, err)
	}
	if s == nil {
		s = Snapshot{}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
