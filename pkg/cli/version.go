package cli

// Package-level version information
var (
	version = "dev"
)

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v string) {
	version = v
}

// GetVersion returns the current version string
func GetVersion() string {
	return version
}
