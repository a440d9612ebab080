package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/sysextctl/internal/clock"
	"github.com/danieljhkim/sysextctl/internal/config"
	"github.com/danieljhkim/sysextctl/internal/fsops"
	"github.com/danieljhkim/sysextctl/internal/hash"
	"github.com/danieljhkim/sysextctl/internal/identity"
	"github.com/danieljhkim/sysextctl/internal/state"
	"github.com/danieljhkim/sysextctl/internal/sysext"
)

// fakeResolver reads identities from test images. An image holds
// "<sysext-id> <version> [name]"; a sysext ID of "-" means none and the
// word "malformed" fails like a bad descriptor.
type fakeResolver struct {
	overrides map[string]identity.Identity
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{overrides: make(map[string]identity.Identity)}
}

func (r *fakeResolver) Extract(ctx context.Context, path string) (*identity.Identity, error) {
	if id, ok := r.overrides[path]; ok {
		return &id, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrDeviceSetup, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 || fields[0] == "malformed" {
		return nil, fmt.Errorf("%w: %s", identity.ErrMalformedImage, path)
	}

	id := identity.Identity{Name: fields[0]}
	if fields[0] != "-" {
		id.SysextID = fields[0]
	}
	if len(fields) > 1 {
		id.VersionID = fields[1]
	}
	if len(fields) > 2 {
		id.Name = fields[2]
	}
	return &id, nil
}

func (r *fakeResolver) ExtractDir(root string) (*identity.Identity, error) {
	return nil, fmt.Errorf("%w: %s", identity.ErrMalformedImage, root)
}

// fakeSystem plays the overlay tool: it lists every image in the managed
// directory and counts refreshes.
type fakeSystem struct {
	storageDir string
	refreshes  int
	refreshErr error
}

func (s *fakeSystem) List(ctx context.Context) ([]sysext.Entry, error) {
	entries, err := os.ReadDir(s.storageDir)
	if os.IsNotExist(err) {
		return []sysext.Entry{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := []sysext.Entry{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), imageSuffix) {
			continue
		}
		out = append(out, sysext.Entry{
			Name: strings.TrimSuffix(e.Name(), imageSuffix),
			Type: "raw",
			Path: filepath.Join(s.storageDir, e.Name()),
		})
	}
	return out, nil
}

func (s *fakeSystem) Refresh(ctx context.Context) error {
	s.refreshes++
	return s.refreshErr
}

type engineEnv struct {
	root     string
	paths    config.Paths
	sys      *fakeSystem
	resolver *fakeResolver
	store    *state.FileStore
	eng      *Engine
}

func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()
	root := t.TempDir()
	paths := config.Paths{
		StorageDir:   filepath.Join(root, "extensions"),
		SnapshotPath: filepath.Join(root, "state", "observed.json"),
		LockPath:     filepath.Join(root, "state", "observed.lock"),
		ScratchDir:   filepath.Join(root, "scratch"),
		SysextBinary: "systemd-sysext",
		LogLevel:     "info",
	}

	fs := fsops.NewRealFS()
	sys := &fakeSystem{storageDir: paths.StorageDir}
	resolver := newFakeResolver()
	store := state.NewFileStore(fs, paths.SnapshotPath, sys, resolver, zerolog.Nop())
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	return &engineEnv{
		root:     root,
		paths:    paths,
		sys:      sys,
		resolver: resolver,
		store:    store,
		eng:      New(fs, hash.NewSHA256Hasher(), clk, resolver, store, sys, paths, zerolog.Nop()),
	}
}

// source writes a desired image outside the managed directory.
func (env *engineEnv) source(t *testing.T, file, content string) string {
	t.Helper()
	return writeFile(t, filepath.Join(env.root, "src", file), content)
}

// merged writes an image straight into the managed directory.
func (env *engineEnv) merged(t *testing.T, file, content string) string {
	t.Helper()
	return writeFile(t, filepath.Join(env.paths.StorageDir, file), content)
}

func (env *engineEnv) managed(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(env.paths.StorageDir)
	if err != nil {
		t.Fatalf("failed to read managed directory: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func (env *engineEnv) savedSnapshot(t *testing.T) state.Snapshot {
	t.Helper()
	data, err := os.ReadFile(env.paths.SnapshotPath)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	snap, err := state.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return snap
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
