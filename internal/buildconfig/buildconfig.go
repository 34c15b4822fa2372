package buildconfig

// Build-time variables injected via ldflags:
//
//	-X github.com/qivr/analytics-etl/internal/buildconfig.version=...
var (
	version = "dev"
	commit  = "unknown"
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// UserAgent identifies this build to the object store and secrets APIs.
func UserAgent() string {
	return "qivr-analytics-etl/" + version
}

// VersionInfo returns full version information
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
	}
}
