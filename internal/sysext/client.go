// Package sysext talks to the systemd-sysext overlay tool. Only two
// operations are used: a structured listing and a refresh.
package sysext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/danieljhkim/sysextctl/internal/execx"
)

// Entry is one extension reported by "systemd-sysext list --json=short".
type Entry struct {
	Class string `json:"class,omitempty"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Path  string `json:"path"`
	Time  uint64 `json:"time"`
}

// Lister reports the extensions currently known to the overlay tool.
type Lister interface {
	List(ctx context.Context) ([]Entry, error)
}

// Refresher re-applies the overlay from the extension directories.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Client implements Lister and Refresher by running the overlay tool binary.
type Client struct {
	runner execx.Runner
	binary string
}

// NewClient creates a Client running binary (normally "systemd-sysext").
func NewClient(runner execx.Runner, binary string) *Client {
	return &Client{runner: runner, binary: binary}
}

// List runs "<binary> list --json=short" and decodes the result.
func (c *Client) List(ctx context.Context) ([]Entry, error) {
	out, err := c.runner.Run(ctx, c.binary, "list", "--json=short")
	if err != nil {
		return nil, fmt.Errorf("failed to list extensions: %w", err)
	}
	return ParseList(out)
}

// Refresh runs "<binary> refresh".
func (c *Client) Refresh(ctx context.Context) error {
	if _, err := c.runner.Run(ctx, c.binary, "refresh"); err != nil {
		return fmt.Errorf("failed to refresh extensions: %w", err)
	}
	return nil
}

// ParseList decodes list output. Empty output means no extensions.
func ParseList(data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse extension list: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

