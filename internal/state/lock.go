package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/danieljhkim/sysextctl/internal/clock"
)

// Lock is an exclusive advisory lock on the snapshot lock file.
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes the lock at path without waiting. If another process
// holds it, the returned error wraps ErrLocked and names the holder. A holder
// record that cannot be written is logged; the lock is still held.
func AcquireLock(path string, clk clock.Clock, logger zerolog.Logger) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create lock directory: %v", ErrStore, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open lock file: %v", ErrStore, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		holder := readHolder(f)
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, holder)
		}
		return nil, fmt.Errorf("%w: failed to lock %s: %v", ErrStore, path, err)
	}

	sentinel := fmt.Sprintf("pid=%d acquired=%s\n", os.Getpid(), clk.Now().Format(time.RFC3339))
	if err := writeHolder(f, sentinel); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to record lock holder; contenders will see holder unknown")
	}

	return &Lock{file: f, path: path}, nil
}

// Release unlocks and closes the lock file. The file itself is kept.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.file.Truncate(0)
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.path, unlockErr)
	}
	return closeErr
}

// holderFile is the part of *os.File the holder record needs.
type holderFile interface {
	Truncate(size int64) error
	WriteAt(b []byte, off int64) (int, error)
}

func writeHolder(f holderFile, sentinel string) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := f.WriteAt([]byte(sentinel), 0); err != nil {
		return fmt.Errorf("failed to write lock holder: %w", err)
	}
	return nil
}

func readHolder(f *os.File) string {
	buf := make([]byte, 128)
	n, _ := f.ReadAt(buf, 0)
	holder := strings.TrimSpace(string(buf[:n]))
	if holder == "" {
		return "holder unknown"
	}
	return "held by " + holder
}
