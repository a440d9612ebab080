package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/sysextctl/internal/execx"
	"github.com/danieljhkim/sysextctl/internal/fsops"
)

// Extractor resolves identities from images and unpacked extension trees.
type Extractor struct {
	runner     execx.Runner
	fs         fsops.FS
	scratchDir string
	logger     zerolog.Logger
}

// NewExtractor creates an Extractor that mounts images below scratchDir.
func NewExtractor(runner execx.Runner, fs fsops.FS, scratchDir string, logger zerolog.Logger) *Extractor {
	return &Extractor{
		runner:     runner,
		fs:         fs,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

// lease tracks the kernel resources held for one extraction.
type lease struct {
	device     string
	mountPoint string
	mounted    bool
}

// Extract reads the identity of the image at imagePath.
//
// Each call uses its own scratch mount point, so concurrent calls do not
// collide. The mount and the loop device are released before Extract returns,
// whether it succeeds, fails or panics; a release failure is reported as an
// error even when parsing succeeded.
func (x *Extractor) Extract(ctx context.Context, imagePath string) (id *Identity, err error) {
	info, err := x.fs.Stat(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceSetup, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrDeviceSetup, imagePath)
	}

	fsType, err := DetectFSType(x.fs, imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image header: %v", ErrDeviceSetup, err)
	}

	l := &lease{}
	defer func() {
		// Release must run even if the caller's context is already cancelled.
		cleanupCtx := context.WithoutCancel(ctx)
		if relErr := x.release(cleanupCtx, l); relErr != nil {
			x.logger.Error().Err(relErr).Str("image", imagePath).Msg("failed to release extraction resources")
			err = errors.Join(err, relErr)
			id = nil
		}
	}()

	mountPoint, err := x.fs.MkdirTemp(x.scratchDir, "mnt-*")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create scratch mount point: %v", ErrMount, err)
	}
	l.mountPoint = mountPoint

	out, err := x.runner.Run(ctx, "losetup", "--find", "--show", "--read-only", imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceSetup, err)
	}
	device := strings.TrimSpace(string(bytes.SplitN(out, []byte("\n"), 2)[0]))
	if device == "" {
		return nil, fmt.Errorf("%w: losetup reported no device for %s", ErrDeviceSetup, imagePath)
	}
	l.device = device

	args := []string{"-o", "ro"}
	if fsType != "" {
		args = append(args, "-t", fsType)
	}
	args = append(args, device, mountPoint)
	if _, err := x.runner.Run(ctx, "mount", args...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMount, err)
	}
	l.mounted = true

	x.logger.Debug().
		Str("image", imagePath).
		Str("device", device).
		Str("mount", mountPoint).
		Str("fstype", fsType).
		Msg("mounted extension image")

	return x.ExtractDir(mountPoint)
}

// release undoes whatever l holds, in reverse order of acquisition.
func (x *Extractor) release(ctx context.Context, l *lease) error {
	var errs []error
	if l.mounted {
		if _, err := x.runner.Run(ctx, "umount", l.mountPoint); err != nil {
			errs = append(errs, fmt.Errorf("%w: failed to unmount %s: %v", ErrMount, l.mountPoint, err))
		} else {
			l.mounted = false
		}
	}
	if l.device != "" {
		if _, err := x.runner.Run(ctx, "losetup", "--detach", l.device); err != nil {
			errs = append(errs, fmt.Errorf("%w: failed to detach %s: %v", ErrDeviceSetup, l.device, err))
		} else {
			l.device = ""
		}
	}
	// A still-mounted directory cannot be removed; leave it for the operator.
	if l.mountPoint != "" && !l.mounted {
		if err := x.fs.Remove(l.mountPoint); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove scratch mount point %s: %w", l.mountPoint, err))
		}
	}
	return errors.Join(errs...)
}

// ExtractDir reads the identity of an unpacked extension tree rooted at root.
// StoragePath is left empty.
func (x *Extractor) ExtractDir(root string) (*Identity, error) {
	descriptor, err := x.findDescriptor(root)
	if err != nil {
		return nil, err
	}

	name, err := NameFromDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	if err := x.fs.ValidateIdentifier(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNaming, err)
	}

	data, err := x.fs.ReadFile(descriptor)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrMalformedImage, descriptor, err)
	}
	x.logger.Trace().Str("descriptor", descriptor).Str("content", string(data)).Msg("read release descriptor")

	release, err := ParseRelease(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", descriptor, err)
	}

	id := release.Identity(name)
	if !id.HasKey() {
		x.logger.Warn().Str("name", name).Msg("release descriptor has no SYSEXT_ID; version matching disabled")
	}
	return &id, nil
}

// findDescriptor returns the single extension-release.* file under root.
func (x *Extractor) findDescriptor(root string) (string, error) {
	dir := filepath.Join(root, ReleaseDir)
	entries, err := x.fs.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: no %s directory: %v", ErrMalformedImage, ReleaseDir, err)
	}

	var found []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), releaseMarker) {
			continue
		}
		found = append(found, filepath.Join(dir, entry.Name()))
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: no release descriptor in %s", ErrMalformedImage, dir)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %d release descriptors in %s", ErrMalformedImage, len(found), dir)
	}
}
