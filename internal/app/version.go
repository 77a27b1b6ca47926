package app

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/ebcovid/caseledger/internal/app.Version=...".
var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// BuildVersion is the string printed by --version and logged at run start.
// Without ldflags it falls back to the VCS stamp of the build, if any.
func BuildVersion() string {
	commit, built := Commit, BuildTime
	if commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					commit = s.Value
				case "vcs.time":
					if built == "" {
						built = s.Value
					}
				}
			}
		}
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit == "" {
		return Version
	}
	if built == "" {
		return fmt.Sprintf("%s (%s)", Version, commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, built)
}
