// Package hostconfig loads the host configuration document that names the
// desired extensions and the health checks of the host.
package hostconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/danieljhkim/sysextctl/internal/health"
)

// ErrInvalid is returned for documents that cannot be used.
var ErrInvalid = errors.New("invalid host configuration")

// HostConfig is the subset of the host configuration this tool reads.
type HostConfig struct {
	ServicingType string        `yaml:"servicingType,omitempty"`
	Sysexts       Sysexts       `yaml:"sysexts"`
	Health        health.Health `yaml:"health,omitempty"`

	dir string
}

// Sysexts lists image sources to merge and to unmerge.
type Sysexts struct {
	Add    []Source `yaml:"add,omitempty"`
	Remove []Source `yaml:"remove,omitempty"`
}

// Source locates one image. URL is a file:// URL or a local path.
type Source struct {
	Name string `yaml:"name,omitempty"`
	URL  string `yaml:"url"`
}

// DesiredState is the resolved list of local image paths.
type DesiredState struct {
	Add    []string
	Remove []string
}

// Load reads and validates the host configuration at path.
func Load(path string) (*HostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read host configuration: %w", err)
	}

	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configuration directory: %w", err)
	}
	cfg.dir = abs
	return cfg, nil
}

// Parse decodes a host configuration. Unknown fields are rejected.
func Parse(r io.Reader) (*HostConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg HostConfig
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks servicing type and source locations.
func (c *HostConfig) Validate() error {
	if _, err := health.ParseServicingType(c.ServicingType); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, list := range [][]Source{c.Sysexts.Add, c.Sysexts.Remove} {
		for _, src := range list {
			if _, err := localPath(src.URL); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalid, err)
			}
		}
	}
	return nil
}

// Servicing returns the declared servicing type.
func (c *HostConfig) Servicing() health.ServicingType {
	st, _ := health.ParseServicingType(c.ServicingType)
	return st
}

// Desired returns the local paths of the add and remove sources. Relative
// paths are resolved against the directory of the loaded file.
func (c *HostConfig) Desired() (DesiredState, error) {
	var ds DesiredState
	for _, src := range c.Sysexts.Add {
		p, err := c.resolve(src)
		if err != nil {
			return DesiredState{}, err
		}
		ds.Add = append(ds.Add, p)
	}
	for _, src := range c.Sysexts.Remove {
		p, err := c.resolve(src)
		if err != nil {
			return DesiredState{}, err
		}
		ds.Remove = append(ds.Remove, p)
	}
	return ds, nil
}

func (c *HostConfig) resolve(src Source) (string, error) {
	p, err := localPath(src.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !filepath.IsAbs(p) && c.dir != "" {
		p = filepath.Join(c.dir, p)
	}
	return filepath.Clean(p), nil
}

// localPath maps a source location onto a filesystem path. Only local
// files are supported.
func localPath(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("sysext source has no url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("sysext source %q: %v", raw, err)
	}
	switch u.Scheme {
	case "":
		return raw, nil
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("sysext source %q names a remote host", raw)
		}
		if u.Path == "" {
			return "", fmt.Errorf("sysext source %q has no path", raw)
		}
		return u.Path, nil
	default:
		return "", fmt.Errorf("sysext source %q: unsupported scheme %q", raw, u.Scheme)
	}
}
