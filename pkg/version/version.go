// Package version exposes build metadata of the sampler binary.
package version

import "runtime/debug"

const develVersion = "(devel)"

// Set at build time with -ldflags "-X".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// InitBinaryVersion fills Version and Commit from the module build info when
// they were not injected at link time.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != develVersion {
		Version = info.Main.Version
	}

	if Commit != "none" {
		return
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			Commit = setting.Value
		}
	}
}

// String formats the build metadata for the version command.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
