package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const devVersion = "0.1.0-dev"

var (
	// AppName is shown in the index route and the CLI
	AppName = "foldernotify"

	// Version, Revision and BuildDate are overridden with -ldflags in release builds
	Version   = devVersion
	Revision  = "HEAD"
	BuildDate = ""
)

// fillFromBuildInfo uses module and vcs metadata for fields that ldflags left at their defaults.
func fillFromBuildInfo(info *debug.BuildInfo) {
	if info == nil {
		return
	}

	vcs := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}

	if Version == devVersion && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = strings.TrimPrefix(info.Main.Version, "v")
	}

	if rev := vcs["vcs.revision"]; Revision == "HEAD" && rev != "" {
		if vcs["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		Revision = rev
	}

	if BuildDate == "" {
		BuildDate = vcs["vcs.time"]
	}
}

// Short returns `0.1.0 (5e23a4)`
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// Detailed returns `0.1.0 (5e23a4; go1.24.0; linux/amd64; 2025-01-01T00:00:00Z)`
func Detailed() string {
	return fmt.Sprintf("%s (%s; %s; %s/%s; %s)", Version, Revision, runtime.Version(), runtime.GOOS, runtime.GOARCH, BuildDate)
}

// DetailedWithApp prefixes Detailed with the application name
func DetailedWithApp() string {
	return AppName + " " + Detailed()
}

func init() {
	info, _ := debug.ReadBuildInfo()
	fillFromBuildInfo(info)
}
