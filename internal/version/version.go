// Package version holds build metadata injected via ldflags:
//
//	-X github.com/ecolens/tierscore/internal/version.Version=v1.2.0
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build as "version (commit, date)".
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
