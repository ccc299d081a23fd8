package platform

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupported marks host OS/architecture combinations that no release
// asset is published for.
var ErrUnsupported = errors.New("unsupported platform")

// Descriptor captures everything downstream components need to know about
// the host platform. It is detected once near process start and passed down
// by value; nothing re-detects on its own.
type Descriptor struct {
	OS         string // "linux", "darwin", "windows"
	Arch       string // "x86_64", "aarch64"
	BinaryExt  string // "" on POSIX, ".exe" on windows
	ArchiveExt string // ".tar.gz" on POSIX, ".zip" on windows
}

var archTags = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
}

// Detect maps the running process's GOOS/GOARCH onto a Descriptor. Unknown
// combinations fail with ErrUnsupported rather than guessing.
func Detect() (Descriptor, error) {
	return detect(runtime.GOOS, runtime.GOARCH)
}

func detect(goos, goarch string) (Descriptor, error) {
	arch, ok := archTags[goarch]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s/%s", ErrUnsupported, goos, goarch)
	}

	switch goos {
	case "linux", "darwin":
		return Descriptor{OS: goos, Arch: arch, ArchiveExt: ".tar.gz"}, nil
	case "windows":
		return Descriptor{OS: goos, Arch: arch, BinaryExt: ".exe", ArchiveExt: ".zip"}, nil
	default:
		return Descriptor{}, fmt.Errorf("%w: %s/%s", ErrUnsupported, goos, goarch)
	}
}

// AssetName returns the release asset file name for a tool on this platform,
// e.g. "scout-linux-x86_64.tar.gz". It must stay in lockstep with the naming
// used by the release publishing workflow.
func (d Descriptor) AssetName(toolName string) string {
	return toolName + "-" + d.OS + "-" + d.Arch + d.ArchiveExt
}

// BinaryName returns the executable file name for a tool on this platform.
func (d Descriptor) BinaryName(toolName string) string {
	return toolName + d.BinaryExt
}

// String renders the descriptor in os/arch form for logs and diagnostics.
func (d Descriptor) String() string {
	return d.OS + "/" + d.Arch
}
