package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is set with -ldflags "-X .../internal/version.Version=v1.2.3".
	Version = "dev"
	// Commit is the git commit hash, set by build flags
	Commit = "unknown"
	// BuildDate is the build date, set by build flags
	BuildDate = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns build information. When the commit was not injected at link
// time it is taken from the VCS stamp Go embeds, if any.
func Get() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "unknown" && s.Value != "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "unknown" && s.Value != "" {
					info.BuildDate = s.Value
				}
			}
		}
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
	}
	return info
}

// Info returns version information
func Info() string {
	b := Get()
	return fmt.Sprintf("APK Extractor %s\nCommit: %s\nBuilt: %s\nGo: %s\nOS/Arch: %s",
		b.Version, b.Commit, b.BuildDate, b.GoVersion, b.Platform)
}

// Short returns short version string
func Short() string {
	return Version
}
