// Package identity derives the identity of a system extension image from the
// release descriptor embedded in it, never from the image file name.
//
// An image is attached to a loop device, mounted read-only on a private
// scratch directory, and its usr/lib/extension-release.d/extension-release.<name>
// file is parsed. The loop device and the mount are released on every exit
// path of Extract.
package identity

import "errors"

var (
	// ErrDeviceSetup indicates no loop device could be bound to the image.
	ErrDeviceSetup = errors.New("loop device setup failed")

	// ErrMount indicates the image could not be mounted or unmounted.
	ErrMount = errors.New("mount failed")

	// ErrMalformedImage indicates a missing, ambiguous or unparsable release descriptor.
	ErrMalformedImage = errors.New("malformed extension image")

	// ErrNaming indicates the descriptor file name carries no extension name.
	ErrNaming = errors.New("cannot derive extension name")
)

// Identity describes one extension image. Empty strings mean the key was
// absent from the release descriptor.
type Identity struct {
	// OSID is the ID the extension targets
	OSID string `json:"osId,omitempty"`

	// SysextID is the identity key shared by all versions of one extension
	SysextID string `json:"sysextId,omitempty"`

	// VersionID decides whether an observed extension needs an update
	VersionID string `json:"versionId,omitempty"`

	// Scope is the SYSEXT_SCOPE value (descriptive only)
	Scope string `json:"scope,omitempty"`

	// Architecture is the ARCHITECTURE value (descriptive only)
	Architecture string `json:"architecture,omitempty"`

	// Name is the label the extension registers under on the host
	Name string `json:"name"`

	// StoragePath is the merged image path; set only for observed identities
	StoragePath string `json:"storagePath,omitempty"`
}

// HasKey reports whether the identity carries a sysext ID.
func (i Identity) HasKey() bool {
	return i.SysextID != ""
}

// SameExtension reports whether i and o are versions of one logical
// extension. Identities without a sysext ID never match anything, including
// each other.
func (i Identity) SameExtension(o Identity) bool {
	return i.HasKey() && i.SysextID == o.SysextID
}

// String renders the identity for log lines.
func (i Identity) String() string {
	key := i.SysextID
	if key == "" {
		key = "<no-sysext-id>"
	}
	if i.VersionID == "" {
		return i.Name + " (" + key + ")"
	}
	return i.Name + " (" + key + "@" + i.VersionID + ")"
}
