// Package version holds build-time metadata injected via -ldflags.
package version

var (
	// Version is a SemVer tag like v1.2.3 for releases. Empty for dev builds.
	Version = ""
	// Commit is the short git SHA for the build.
	Commit = ""
	// Date is the UTC build timestamp in RFC3339 format.
	Date = ""
)

// String returns a compact human-readable version. Releases report the tag,
// dev builds report "dev-<sha>" or plain "dev" when no metadata is available.
func String() string {
	if Version != "" {
		return Version
	}
	if Commit != "" {
		return "dev-" + Commit
	}
	return "dev"
}
