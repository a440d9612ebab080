package hostconfig

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danieljhkim/sysextctl/internal/health"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "host.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Desired(t *testing.T) {
	path := writeConfig(t, `
servicingType: ab-update
sysexts:
  add:
    - url: file:///var/tmp/net-tools.raw
    - name: local
      url: images/debug.raw
  remove:
    - url: /var/tmp/old.raw
health:
  checks:
    - systemdServices: [sshd.service]
      timeoutSeconds: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ds, err := cfg.Desired()
	if err != nil {
		t.Fatalf("Desired failed: %v", err)
	}

	wantAdd := []string{"/var/tmp/net-tools.raw", filepath.Join(filepath.Dir(path), "images", "debug.raw")}
	if strings.Join(ds.Add, ",") != strings.Join(wantAdd, ",") {
		t.Errorf("Add = %v, want %v", ds.Add, wantAdd)
	}
	if len(ds.Remove) != 1 || ds.Remove[0] != "/var/tmp/old.raw" {
		t.Errorf("Remove = %v", ds.Remove)
	}
	if cfg.Servicing() != health.AbUpdate {
		t.Errorf("Servicing() = %q, want ab-update", cfg.Servicing())
	}
	if len(cfg.Health.Checks) != 1 {
		t.Errorf("decoded %d checks, want 1", len(cfg.Health.Checks))
	}
}

func TestLoad_EmptyDocument(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	ds, err := cfg.Desired()
	if err != nil {
		t.Fatalf("Desired failed: %v", err)
	}
	if len(ds.Add) != 0 || len(ds.Remove) != 0 {
		t.Errorf("expected empty desired state, got %+v", ds)
	}
	if cfg.Servicing() != health.NoActiveServicing {
		t.Errorf("Servicing() = %q, want none", cfg.Servicing())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", "sysexts:\n  add: []\n  replace: []\n"},
		{"remote scheme", "sysexts:\n  add:\n    - url: https://example.com/a.raw\n"},
		{"remote file host", "sysexts:\n  add:\n    - url: file://server/a.raw\n"},
		{"missing url", "sysexts:\n  remove:\n    - name: x\n"},
		{"bad servicing type", "servicingType: reboot\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Load() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error %v does not wrap os.ErrNotExist", err)
	}
}
