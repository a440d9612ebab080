package fsops

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestRealFS_ValidateIdentifier(t *testing.T) {
	fs := &RealFS{}

	tests := []struct {
		name      string
		id        string
		wantError bool
	}{
		{name: "simple name", id: "net-tools", wantError: false},
		{name: "with underscores and digits", id: "debug_tools_2", wantError: false},
		{name: "with dots inside", id: "kernel.debug", wantError: false},
		{name: "empty", id: "", wantError: true},
		{name: "current directory", id: ".", wantError: true},
		{name: "parent directory", id: "..", wantError: true},
		{name: "hidden name", id: ".staging-1", wantError: true},
		{name: "path with separator", id: "ext/sub", wantError: true},
		{name: "path with backslash", id: "ext\\sub", wantError: true},
		{name: "with space", id: "net tools", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.ValidateIdentifier(tt.id)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantError %v", tt.id, err, tt.wantError)
			}
		})
	}
}

func TestRealFS_CopyFile(t *testing.T) {
	fs := NewRealFS()

	t.Run("copies content and leaves source in place", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src.raw")
		dst := filepath.Join(dir, "nested", "dst.raw")
		if err := os.WriteFile(src, []byte("image bytes"), 0644); err != nil {
			t.Fatalf("failed to write source: %v", err)
		}

		if err := fs.CopyFile(src, dst); err != nil {
			t.Fatalf("CopyFile failed: %v", err)
		}

		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatalf("failed to read destination: %v", err)
		}
		if string(got) != "image bytes" {
			t.Errorf("destination content = %q, want %q", got, "image bytes")
		}
		if _, err := os.Stat(src); err != nil {
			t.Errorf("source should still exist: %v", err)
		}
	})

	t.Run("rejects directory source", func(t *testing.T) {
		dir := t.TempDir()
		if err := fs.CopyFile(dir, filepath.Join(dir, "out")); err == nil {
			t.Error("expected error copying a directory, got nil")
		}
	})

	t.Run("missing source", func(t *testing.T) {
		dir := t.TempDir()
		if err := fs.CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "out")); err == nil {
			t.Error("expected error for missing source, got nil")
		}
	})
}

func TestRealFS_AtomicWrite(t *testing.T) {
	fs := NewRealFS()
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "observed.json")

	if err := fs.AtomicWrite(path, []byte("[]"), 0644); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}
	if err := fs.AtomicWrite(path, []byte("[{}]"), 0644); err != nil {
		t.Fatalf("second AtomicWrite failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(got) != "[{}]" {
		t.Errorf("content = %q, want %q", got, "[{}]")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file to remain, got %d entries", len(entries))
	}
}

func TestRealFS_Exists(t *testing.T) {
	fs := NewRealFS()
	dir := t.TempDir()

	exists, err := fs.Exists(dir)
	if err != nil || !exists {
		t.Errorf("Exists(%q) = %v, %v; want true, nil", dir, exists, err)
	}

	exists, err = fs.Exists(filepath.Join(dir, "missing"))
	if err != nil || exists {
		t.Errorf("Exists(missing) = %v, %v; want false, nil", exists, err)
	}
}

func TestRealFS_Open(t *testing.T) {
	fs := NewRealFS()
	path := filepath.Join(t.TempDir(), "image.raw")
	if err := os.WriteFile(path, []byte("hsqs"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "hsqs" {
		t.Errorf("Open read %q, want %q", data, "hsqs")
	}

	if _, err := fs.Open(filepath.Join(t.TempDir(), "missing")); !os.IsNotExist(err) {
		t.Errorf("Open(missing) error = %v, want not-exist", err)
	}
}

func TestRealFS_MkdirTemp(t *testing.T) {
	fs := NewRealFS()
	root := filepath.Join(t.TempDir(), "scratch")

	a, err := fs.MkdirTemp(root, "mnt-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	b, err := fs.MkdirTemp(root, "mnt-*")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	if a == b {
		t.Errorf("expected distinct scratch directories, both were %q", a)
	}
}
