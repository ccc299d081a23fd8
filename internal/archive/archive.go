// Package archive pulls single tool binaries out of release archives.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"toolbelt/internal/platform"
)

var (
	// ErrMemberNotFound means the archive held no entry for the wanted
	// binary name.
	ErrMemberNotFound = errors.New("member not found in archive")
	// ErrUnsupportedFormat means the asset is neither a tar.gz nor a zip.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
)

// Format identifies how an asset is packed.
type Format string

const (
	FormatTarGz Format = "tar.gz"
	FormatZip   Format = "zip"
)

// FormatFor derives the archive format from an asset file name.
func FormatFor(assetName string) (Format, error) {
	switch {
	case strings.HasSuffix(assetName, ".tar.gz"), strings.HasSuffix(assetName, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(assetName, ".zip"):
		return FormatZip, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, assetName)
	}
}

// ExtractMember copies the first archive entry whose base file name matches
// memberName to destPath. Zip archives also accept the name with the
// platform binary suffix appended, since Windows assets pack "tool.exe"
// while callers ask for "tool". Directory structure inside the archive is
// ignored; only the named file is ever written.
func ExtractMember(archivePath, memberName, destPath string, plat platform.Descriptor) error {
	format, err := FormatFor(archivePath)
	if err != nil {
		return err
	}

	switch format {
	case FormatTarGz:
		return extractFromTarGz(archivePath, memberName, destPath)
	case FormatZip:
		return extractFromZip(archivePath, memberName, destPath, plat.BinaryExt)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, archivePath)
	}
}

func extractFromTarGz(archivePath, memberName, destPath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if filepath.Base(header.Name) != memberName {
			continue
		}
		// First match wins; the rest of the stream is never read.
		return writeMember(destPath, tr)
	}
	return fmt.Errorf("%w: %s in %s", ErrMemberNotFound, memberName, filepath.Base(archivePath))
}

func extractFromZip(archivePath, memberName, destPath, binaryExt string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(filepath.FromSlash(file.Name))
		if base != memberName && (binaryExt == "" || base != memberName+binaryExt) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", file.Name, err)
		}
		werr := writeMember(destPath, rc)
		rc.Close()
		return werr
	}
	return fmt.Errorf("%w: %s in %s", ErrMemberNotFound, memberName, filepath.Base(archivePath))
}

func writeMember(destPath string, src io.Reader) error {
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", destPath, err)
	}
	return nil
}
