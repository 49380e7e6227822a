// Package version holds the build version, set with
// -ldflags "-X kmerwalk/internal/version.Version=v1.2.3".
package version

// Version is "dev" for untagged builds.
var Version = "dev"
