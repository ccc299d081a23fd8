// Package version carries the launcher's own version string.
package version

// Version is overridden at release time via
// -ldflags "-X toolbelt/internal/version.Version=v1.2.3".
var Version = "v0.1.0"
