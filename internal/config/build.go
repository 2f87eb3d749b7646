package config

import "runtime/debug"

// Set with -ldflags "-X atmos/internal/config.version=1.2.3 ...". Commit and
// build time fall back to the VCS stamp the go tool embeds when they are not
// injected.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reports the build metadata served at GET /version.
func NewBuildInfo() BuildInfo {
	info := BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = withVCS(info, bi.Settings)
	}
	return info
}

// withVCS fills the fields still at their defaults from vcs.* settings.
func withVCS(info BuildInfo, settings []debug.BuildSetting) BuildInfo {
	var dirty, fromVCS bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" && s.Value != "" {
				info.Commit = s.Value[:min(len(s.Value), 12)]
				fromVCS = true
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && fromVCS {
		info.Commit += "-dirty"
	}
	return info
}
