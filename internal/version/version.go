// Package version holds build metadata injected at link time.
package version

import "fmt"

var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = "unknown"
)

// SetInfo overrides the build metadata. Empty values are ignored.
func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// UserAgent is sent by outbound HTTP clients.
func UserAgent() string {
	return "skybit/" + Version
}

// Summary formats the metadata for the version command.
func Summary() string {
	return fmt.Sprintf("skybit %s\nBuild time: %s\nGit commit: %s\nGo version: %s",
		Version, BuildTime, GitCommit, GoVersion)
}
