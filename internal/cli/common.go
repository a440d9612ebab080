package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/sysextctl/internal/clock"
	"github.com/danieljhkim/sysextctl/internal/config"
	"github.com/danieljhkim/sysextctl/internal/engine"
	"github.com/danieljhkim/sysextctl/internal/execx"
	"github.com/danieljhkim/sysextctl/internal/fsops"
	"github.com/danieljhkim/sysextctl/internal/hash"
	"github.com/danieljhkim/sysextctl/internal/identity"
	"github.com/danieljhkim/sysextctl/internal/logging"
	"github.com/danieljhkim/sysextctl/internal/state"
	"github.com/danieljhkim/sysextctl/internal/sysext"
)

// loadPaths reads the tool configuration named by --config, or the default.
func loadPaths() (*config.Paths, error) {
	var (
		paths *config.Paths
		err   error
	)
	if configFile != "" {
		paths, err = config.Load(configFile)
	} else {
		paths, err = config.DefaultPaths()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return paths, nil
}

// newLogger creates the stderr logger; --verbose raises it to debug.
func newLogger(paths *config.Paths) zerolog.Logger {
	level := paths.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(os.Stderr, level)
}

// newExtractor creates an identity extractor backed by losetup and mount.
func newExtractor(paths *config.Paths, logger zerolog.Logger) *identity.Extractor {
	return identity.NewExtractor(execx.NewRealRunner(), fsops.NewRealFS(), paths.ScratchDir, logger)
}

// newEngine creates a new engine with real implementations of all dependencies.
func newEngine() (*engine.Engine, error) {
	paths, err := loadPaths()
	if err != nil {
		return nil, err
	}
	logger := newLogger(paths)

	fs := fsops.NewRealFS()
	runner := execx.NewRealRunner()
	extractor := identity.NewExtractor(runner, fs, paths.ScratchDir, logger)
	client := sysext.NewClient(runner, paths.SysextBinary)
	store := state.NewFileStore(fs, paths.SnapshotPath, client, extractor, logger)

	return engine.New(fs, hash.NewSHA256Hasher(), &clock.RealClock{}, extractor, store, client, *paths, logger), nil
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	out, err := formatJSON(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(stdout, out)
	return err
}
