// Package hash provides file hashing for verifying staged extension images.
//
// The engine hashes every source image and its staged copy and refuses to
// move a copy into the managed directory when they differ.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Hasher provides an abstraction for file hashing operations.
type Hasher interface {
	// HashFile computes the hash of the file at the given path.
	HashFile(path string) (string, error)
}

// SHA256Hasher implements Hasher using SHA-256.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a new SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// HashFile computes the SHA-256 hash of the file at the given path.
func (h *SHA256Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// SameContent reports whether a and b hash to the same digest.
func SameContent(h Hasher, a, b string) (bool, error) {
	ha, err := h.HashFile(a)
	if err != nil {
		return false, err
	}
	hb, err := h.HashFile(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

// FakeHasher implements Hasher with predetermined digests for testing.
// Paths without a digest hash to their own name, so distinct files differ.
type FakeHasher struct {
	hashes map[string]string
}

// NewFakeHasher creates a new FakeHasher.
func NewFakeHasher() *FakeHasher {
	return &FakeHasher{hashes: make(map[string]string)}
}

// SetHash sets the digest returned for path.
func (h *FakeHasher) SetHash(path, digest string) {
	h.hashes[path] = digest
}

// HashFile returns the predetermined digest for the given path.
func (h *FakeHasher) HashFile(path string) (string, error) {
	if digest, ok := h.hashes[path]; ok {
		return digest, nil
	}
	return "fake:" + path, nil
}
