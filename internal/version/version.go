// Package version holds build information set at link time with
// -ldflags "-X github.com/Norgate-AV/incr/internal/version.Version=..."
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// String formats the build information for the --version flag
func String() string {
	return Version + " (" + Commit + ") " + BuildTime
}
