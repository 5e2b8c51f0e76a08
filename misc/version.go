// Package misc keeps program identification in one place.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "mksite"

var buildInfo = sync.OnceValue(func() *debug.BuildInfo {
	if bi, ok := debug.ReadBuildInfo(); ok {
		return bi
	}
	return nil
})

// GetAppName returns program name used in logs and temporary file names.
func GetAppName() string {
	return appName
}

// GetVersion returns main module version or "dev" for local builds.
func GetVersion() string {
	bi := buildInfo()
	if bi == nil || bi.Main.Version == "" || bi.Main.Version == "(devel)" {
		return "dev"
	}
	return bi.Main.Version
}

// GetGitHash returns VCS revision stamped into the binary, if any.
func GetGitHash() string {
	bi := buildInfo()
	if bi == nil {
		return "unknown"
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return "unknown"
}
