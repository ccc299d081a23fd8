// Package checksum provides integrity checks for downloaded artifacts.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// MismatchError reports a digest that differs from the expected value.
type MismatchError struct {
	Path string
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: want %s, got %s", e.Path, e.Want, e.Got)
}

// Digest streams the file through SHA-256 and returns the lowercase hex
// digest. The file is never loaded into memory whole.
func Digest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify compares the file's digest against expected, ignoring hex case.
// A mismatch is a *MismatchError carrying both values.
func Verify(path, expected string) error {
	got, err := Digest(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, expected) {
		return &MismatchError{Path: path, Want: strings.ToLower(expected), Got: got}
	}
	return nil
}
