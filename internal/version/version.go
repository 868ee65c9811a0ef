// Package version carries build metadata stamped in at link time via
// -ldflags "-X deunifi/internal/version.Version=...".
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
