package identity

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/subosito/gotenv"
)

// ReleaseDir is where an extension keeps its release descriptor, relative to
// the image root.
const ReleaseDir = "usr/lib/extension-release.d"

// releaseMarker precedes the extension name in a descriptor file name.
const releaseMarker = "extension-release."

// Release descriptor keys.
const (
	KeyOSID         = "ID"
	KeySysextID     = "SYSEXT_ID"
	KeyVersionID    = "SYSEXT_VERSION_ID"
	KeyScope        = "SYSEXT_SCOPE"
	KeyArchitecture = "ARCHITECTURE"
)

// Release holds the KEY=VALUE pairs of a release descriptor.
type Release map[string]string

// literalDollar stands in for "$" while gotenv parses, so values are never
// expanded from earlier keys or the process environment.
const literalDollar = "\x00"

// ParseRelease parses an os-release style descriptor: one KEY=VALUE per line,
// optional quoting, # comments. Values are taken literally; "$" does not
// expand.
func ParseRelease(r io.Reader) (Release, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	text := string(data)
	if strings.Contains(text, literalDollar) {
		return nil, fmt.Errorf("%w: descriptor contains a NUL byte", ErrMalformedImage)
	}

	env, err := gotenv.StrictParse(strings.NewReader(strings.ReplaceAll(text, "$", literalDollar)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}

	rel := make(Release, len(env))
	for k, v := range env {
		rel[k] = strings.ReplaceAll(v, literalDollar, "$")
	}
	return rel, nil
}

// Identity builds the identity registered under name. Absent keys stay empty.
func (r Release) Identity(name string) Identity {
	return Identity{
		OSID:         r[KeyOSID],
		SysextID:     r[KeySysextID],
		VersionID:    r[KeyVersionID],
		Scope:        r[KeyScope],
		Architecture: r[KeyArchitecture],
		Name:         name,
	}
}

// NameFromDescriptor returns the text after the last "extension-release."
// in the base name of path.
func NameFromDescriptor(path string) (string, error) {
	base := filepath.Base(path)
	idx := strings.LastIndex(base, releaseMarker)
	if idx < 0 {
		return "", fmt.Errorf("%w: %q has no %q marker", ErrNaming, base, releaseMarker)
	}
	name := base[idx+len(releaseMarker):]
	if name == "" {
		return "", fmt.Errorf("%w: %q has an empty name after the marker", ErrNaming, base)
	}
	return name, nil
}
