package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables, overridden via ldflags.
var (
	Version   = "unknown-version"
	GitCommit = "unknown-commit"
	BuildTime = "unknown-buildtime"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "unknown-version" && info.Main.Version != "" {
		Version = info.Main.Version
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if GitCommit == "unknown-commit" {
				GitCommit = setting.Value
			}
		case "vcs.time":
			if BuildTime == "unknown-buildtime" {
				BuildTime = setting.Value
			}
		}
	}
}

// BuildInfo formats version information of the running binary.
func BuildInfo() string {
	return fmt.Sprintf("Version:\t %s\nGo version:\t %s\nGit commit:\t %s\nBuilt:\t\t %s\nOS/Arch:\t %s/%s\n",
		Version, runtime.Version(), GitCommit, BuildTime, runtime.GOOS, runtime.GOARCH)
}
