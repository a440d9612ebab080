package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/sysextctl/internal/clock"
	"github.com/danieljhkim/sysextctl/internal/config"
	"github.com/danieljhkim/sysextctl/internal/engine"
	"github.com/danieljhkim/sysextctl/internal/execx"
	"github.com/danieljhkim/sysextctl/internal/fsops"
	"github.com/danieljhkim/sysextctl/internal/hash"
	"github.com/danieljhkim/sysextctl/internal/identity"
	"github.com/danieljhkim/sysextctl/internal/state"
	"github.com/danieljhkim/sysextctl/internal/sysext"
)

// host scripts the external programs of a sysext host. Test images are text
// files: the first line is the descriptor suffix, the rest is the release
// descriptor mount exposes.
type host struct {
	t          *testing.T
	paths      config.Paths
	runner     *execx.FakeRunner
	mu         sync.Mutex
	devices    map[string]string
	nextLoop   int
	refreshes  int
	mountCalls int
}

func newHost(t *testing.T) *host {
	t.Helper()
	root := t.TempDir()
	h := &host{
		t: t,
		paths: config.Paths{
			StorageDir:   filepath.Join(root, "extensions"),
			SnapshotPath: filepath.Join(root, "state", "observed.json"),
			LockPath:     filepath.Join(root, "state", "observed.lock"),
			ScratchDir:   filepath.Join(root, "scratch"),
			SysextBinary: "systemd-sysext",
			LogLevel:     "info",
		},
		runner:  execx.NewFakeRunner(),
		devices: make(map[string]string),
	}

	h.runner.Handle("losetup", h.losetup)
	h.runner.Handle("mount", h.mount)
	h.runner.Handle("umount", h.umount)
	h.runner.Handle("systemd-sysext", h.sysext)
	return h
}

func (h *host) losetup(args []string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if args[0] == "--detach" {
		if _, ok := h.devices[args[1]]; !ok {
			return nil, fmt.Errorf("%s: no such loop device", args[1])
		}
		delete(h.devices, args[1])
		return nil, nil
	}
	device := fmt.Sprintf("/dev/loop%d", h.nextLoop)
	h.nextLoop++
	h.devices[device] = args[len(args)-1]
	return []byte(device + "\n"), nil
}

func (h *host) mount(args []string) ([]byte, error) {
	device, mnt := args[len(args)-2], args[len(args)-1]
	h.mu.Lock()
	image, ok := h.devices[device]
	h.mountCalls++
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: not attached", device)
	}

	data, err := os.ReadFile(image)
	if err != nil {
		return nil, err
	}
	suffix, descriptor, _ := strings.Cut(string(data), "\n")
	releaseDir := filepath.Join(mnt, identity.ReleaseDir)
	if err := os.MkdirAll(releaseDir, 0755); err != nil {
		return nil, err
	}
	return nil, os.WriteFile(filepath.Join(releaseDir, "extension-release."+suffix), []byte(descriptor), 0644)
}

func (h *host) umount(args []string) ([]byte, error) {
	return nil, os.RemoveAll(filepath.Join(args[0], "usr"))
}

func (h *host) sysext(args []string) ([]byte, error) {
	switch args[0] {
	case "refresh":
		h.mu.Lock()
		h.refreshes++
		h.mu.Unlock()
		return nil, nil
	case "list":
		entries := []sysext.Entry{}
		dirEntries, err := os.ReadDir(h.paths.StorageDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		for _, e := range dirEntries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".raw") {
				continue
			}
			entries = append(entries, sysext.Entry{
				Class: "sysext",
				Name:  strings.TrimSuffix(e.Name(), ".raw"),
				Type:  "raw",
				Path:  filepath.Join(h.paths.StorageDir, e.Name()),
				Time:  1700000000000000,
			})
		}
		return json.Marshal(entries)
	default:
		return nil, fmt.Errorf("unexpected systemd-sysext %s", args[0])
	}
}

// image writes a test image with the given descriptor suffix and body.
func (h *host) image(file, suffix, descriptor string) string {
	h.t.Helper()
	path := filepath.Join(filepath.Dir(h.paths.StorageDir), "images", file)
	return writeFile(h.t, path, suffix+"\n"+descriptor)
}

// merged places a test image straight into the managed directory.
func (h *host) merged(file, suffix, descriptor string) string {
	h.t.Helper()
	return writeFile(h.t, filepath.Join(h.paths.StorageDir, file), suffix+"\n"+descriptor)
}

func (h *host) engine() *engine.Engine {
	fs := fsops.NewRealFS()
	logger := zerolog.Nop()
	extractor := identity.NewExtractor(h.runner, fs, h.paths.ScratchDir, logger)
	client := sysext.NewClient(h.runner, h.paths.SysextBinary)
	store := state.NewFileStore(fs, h.paths.SnapshotPath, client, extractor, logger)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return engine.New(fs, hash.NewSHA256Hasher(), clk, extractor, store, client, h.paths, logger)
}

// assertReleased checks that no loop device or scratch mount point leaked.
func (h *host) assertReleased() {
	h.t.Helper()
	h.mu.Lock()
	attached := len(h.devices)
	h.mu.Unlock()
	if attached != 0 {
		h.t.Errorf("%d loop devices still attached", attached)
	}
	entries, err := os.ReadDir(h.paths.ScratchDir)
	if err != nil && !os.IsNotExist(err) {
		h.t.Fatalf("failed to read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		h.t.Errorf("scratch dir not empty: %d entries", len(entries))
	}
}

func (h *host) snapshot() state.Snapshot {
	h.t.Helper()
	data, err := os.ReadFile(h.paths.SnapshotPath)
	if err != nil {
		h.t.Fatalf("failed to read snapshot: %v", err)
	}
	snap, err := state.DecodeSnapshot(data)
	if err != nil {
		h.t.Fatalf("failed to decode snapshot: %v", err)
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
