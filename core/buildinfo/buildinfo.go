// Package buildinfo carries version stamps injected at link time:
//
//	go build -ldflags "-X github.com/m3rciful/scanbot/core/buildinfo.Version=v1.4.0 \
//	  -X github.com/m3rciful/scanbot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/scanbot/core/buildinfo.Date=$(date -u +%FT%TZ)"
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// String renders "version (commit, date)" for -version output.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
