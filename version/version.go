// Package version exposes build information stamped into the stratus binary.
//
// Release builds set the variables with
//
//	go build -ldflags "-X github.com/stratustools/core/version.Version=v0.4.0 \
//	  -X github.com/stratustools/core/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/stratustools/core/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
	"strings"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns the build information of this binary.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// UserAgent is sent with every request to the stratus server.
func UserAgent() string {
	return "stratus/" + strings.TrimPrefix(Version, "v")
}

func (i Info) String() string {
	return fmt.Sprintf("Version:\t%s\nCommit:\t\t%s\nBuilt:\t\t%s\nGo:\t\t%s\nPlatform:\t%s",
		i.Version, i.Commit, i.BuildDate, i.GoVersion, i.Platform)
}
