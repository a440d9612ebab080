package identity

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/danieljhkim/sysextctl/internal/fsops"
)

const (
	erofsMagicOffset = 1024
	erofsMagic       = 0xE0F5E1E2
	extMagicOffset   = 1080
	extMagic         = 0xEF53
)

// DetectFSType sniffs the filesystem of an image from its superblock magic.
// It returns "squashfs", "erofs", "ext4", or "" when unknown, in which case
// mount auto-detection is left to decide.
func DetectFSType(fs fsops.FS, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	head := make([]byte, extMagicOffset+2)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]

	switch {
	case len(head) >= 4 && bytes.Equal(head[:4], []byte("hsqs")):
		return "squashfs", nil
	case len(head) >= erofsMagicOffset+4 &&
		binary.LittleEndian.Uint32(head[erofsMagicOffset:]) == erofsMagic:
		return "erofs", nil
	case len(head) >= extMagicOffset+2 &&
		binary.LittleEndian.Uint16(head[extMagicOffset:]) == extMagic:
		return "ext4", nil
	}
	return "", nil
}
