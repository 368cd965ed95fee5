// Package misc provides program identity used in logging and reporting.
package misc

import "runtime/debug"

const appName = "rishi"

var (
	version = "development"
	gitHash = "unknown"
)

// GetAppName returns short program name used for logs, panic files and
// cache directories.
func GetAppName() string {
	return appName
}

// GetVersion returns program version set at build time or derived from
// module build info.
func GetVersion() string {
	if version != "development" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return version
}

// GetGitHash returns vcs revision if it is available.
func GetGitHash() string {
	if gitHash != "unknown" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return gitHash
}
