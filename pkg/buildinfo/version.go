// Package buildinfo reports which stackrank build is running.
//
// Release builds stamp the variables with ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/stackrank/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/stackrank/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/stackrank/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Binaries from `go install` carry no ldflags; for those the module version
// and VCS stamp embedded by the toolchain are used instead.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Stamped by ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// repoURL is advertised in the User-Agent so registry operators can reach us.
const repoURL = "https://github.com/matzehuels/stackrank"

var resolveOnce sync.Once

// resolve fills unstamped variables from the embedded build info.
func resolve() {
	resolveOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		fillFrom(info)
	})
}

func fillFrom(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "none" {
				Commit = s.Value
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = s.Value
			}
		}
	}
}

// String returns the build information as three lines.
func String() string {
	resolve()
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the cobra version template.
func Template() string {
	resolve()
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, shortDate(Date))
}

// UserAgent identifies stackrank to the registries, e.g.
// "stackrank/v1.2.0 (+https://github.com/matzehuels/stackrank)".
func UserAgent() string {
	resolve()
	return fmt.Sprintf("stackrank/%s (+%s)", Version, repoURL)
}

// shortDate trims an RFC 3339 timestamp to its date.
func shortDate(d string) string {
	if len(d) >= 10 && d[4] == '-' && d[7] == '-' {
		return d[:10]
	}
	return d
}
