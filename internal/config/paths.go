// Package config manages sysextctl configuration and filesystem paths.
//
// Defaults target a stock systemd host. Every value can be overridden by an
// optional YAML file (default /etc/sysextctl/config.yaml, or the file named by
// SYSEXTCTL_CONFIG) and then by SYSEXTCTL_<KEY> environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment overrides.
	EnvPrefix = "SYSEXTCTL"

	// EnvConfigFile names the config file to read instead of DefaultConfigFile.
	EnvConfigFile = "SYSEXTCTL_CONFIG"

	// DefaultConfigFile is read when present.
	DefaultConfigFile = "/etc/sysextctl/config.yaml"
)

// Config keys.
const (
	KeyStorageDir   = "storage_dir"
	KeySnapshotPath = "snapshot_path"
	KeyLockPath     = "lock_path"
	KeyScratchDir   = "scratch_dir"
	KeySysextBinary = "sysext_binary"
	KeyLogLevel     = "log_level"
)

// Paths contains the filesystem locations and tools sysextctl uses.
type Paths struct {
	// StorageDir is the managed extension directory images are staged into
	StorageDir string

	// SnapshotPath is the observed-state snapshot file
	SnapshotPath string

	// LockPath is the exclusive lock held for a whole reconciliation
	LockPath string

	// ScratchDir holds the per-extraction mount points
	ScratchDir string

	// SysextBinary is the overlay tool executable
	SysextBinary string

	// LogLevel is the default log level when SYSEXTCTL_LOG_LEVEL is unset
	LogLevel string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyStorageDir, "/var/lib/extensions")
	v.SetDefault(KeySnapshotPath, "/var/lib/sysextctl/observed.json")
	v.SetDefault(KeyLockPath, "/var/lib/sysextctl/observed.lock")
	v.SetDefault(KeyScratchDir, "/run/sysextctl/scratch")
	v.SetDefault(KeySysextBinary, "systemd-sysext")
	v.SetDefault(KeyLogLevel, "info")
}

// DefaultPaths loads the configuration from the default config file location
// and the environment.
func DefaultPaths() (*Paths, error) {
	file := os.Getenv(EnvConfigFile)
	if file == "" {
		file = DefaultConfigFile
	}
	return Load(file)
}

// Load reads configFile if it exists, then applies environment overrides.
// A missing config file is not an error.
func Load(configFile string) (*Paths, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			v.SetConfigFile(configFile)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", configFile, err)
		}
	}

	p := &Paths{
		StorageDir:   v.GetString(KeyStorageDir),
		SnapshotPath: v.GetString(KeySnapshotPath),
		LockPath:     v.GetString(KeyLockPath),
		ScratchDir:   v.GetString(KeyScratchDir),
		SysextBinary: v.GetString(KeySysextBinary),
		LogLevel:     v.GetString(KeyLogLevel),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that every path is set.
func (p *Paths) Validate() error {
	required := map[string]string{
		KeyStorageDir:   p.StorageDir,
		KeySnapshotPath: p.SnapshotPath,
		KeyLockPath:     p.LockPath,
		KeyScratchDir:   p.ScratchDir,
		KeySysextBinary: p.SysextBinary,
	}
	for key, value := range required {
		if value == "" {
			return fmt.Errorf("config %s must not be empty", key)
		}
	}
	return nil
}
