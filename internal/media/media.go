// Package media detects how the system booted and ejects installation media
// when it is safe to do so.
package media

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/sysextctl/internal/execx"
)

// CmdlinePath is the kernel command line location.
const CmdlinePath = "/proc/cmdline"

// BootType is the kind of root filesystem the system runs from.
type BootType string

// Boot types
const (
	RamDisk           BootType = "ram-disk"
	LiveCdrom         BootType = "live-cdrom"
	PersistentStorage BootType = "persistent-storage"
)

// ejectAttempts are tried in order until one succeeds.
var ejectAttempts = [][]string{
	{"--cdrom", "--force"},
	{"/dev/sr0"},
	{"/dev/cdrom"},
	{"--cdrom"},
}

// DetectBootType classifies a kernel command line.
func DetectBootType(cmdline string) BootType {
	switch {
	case strings.Contains(cmdline, "root=/dev/ram0"):
		return RamDisk
	case strings.Contains(cmdline, "root=live:"):
		return LiveCdrom
	default:
		return PersistentStorage
	}
}

// ReadBootType reads and classifies the command line at path.
func ReadBootType(path string) (BootType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read kernel command line: %w", err)
	}
	return DetectBootType(string(data)), nil
}

// Ejector ejects installation media.
type Ejector struct {
	runner      execx.Runner
	cmdlinePath string
	logger      zerolog.Logger
}

// NewEjector creates an Ejector reading the command line at cmdlinePath.
func NewEjector(runner execx.Runner, cmdlinePath string, logger zerolog.Logger) *Ejector {
	return &Ejector{
		runner:      runner,
		cmdlinePath: cmdlinePath,
		logger:      logger,
	}
}

// EjectSmart ejects media only when the system runs from a RAM disk. It
// reports whether media was ejected; failures are logged, never returned.
func (e *Ejector) EjectSmart(ctx context.Context) bool {
	bt, err := ReadBootType(e.cmdlinePath)
	if err != nil {
		e.logger.Warn().Err(err).Msg("could not determine boot type; skipping ejection")
		return false
	}

	switch bt {
	case RamDisk:
		e.logger.Info().Msg("running from RAM disk; ejecting installation media")
		return e.Eject(ctx)
	case LiveCdrom:
		e.logger.Warn().Msg("running from live CD-ROM; installation media stays mounted until reboot into the new OS")
		return false
	default:
		e.logger.Debug().Msg("running from persistent storage; no installation media to eject")
		return false
	}
}

// Eject tries each eject strategy in turn.
func (e *Ejector) Eject(ctx context.Context) bool {
	for _, args := range ejectAttempts {
		if _, err := e.runner.Run(ctx, "eject", args...); err != nil {
			e.logger.Debug().Err(err).Str("cmd", execx.CommandLine("eject", args)).Msg("eject attempt failed")
			continue
		}
		e.logger.Info().Str("cmd", execx.CommandLine("eject", args)).Msg("ejected installation media")
		return true
	}
	e.logger.Warn().Msg("all eject attempts failed; remove installation media manually before rebooting")
	return false
}

// HasRemovableDevices reports whether lsblk lists a removable disk.
func (e *Ejector) HasRemovableDevices(ctx context.Context) bool {
	out, err := e.runner.Run(ctx, "lsblk", "-no", "NAME,RM,TYPE")
	if err != nil {
		e.logger.Debug().Err(err).Msg("failed to check for removable devices")
		return false
	}
	return hasRemovable(string(out))
}

func hasRemovable(lsblk string) bool {
	for _, line := range strings.Split(lsblk, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[1] == "1" && fields[2] == "disk" {
			return true
		}
	}
	return false
}
