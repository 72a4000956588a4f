package version

// will be replaced with the release version when using goreleaser
var version = "development"

// InstallerVersion returns the installer's version
func InstallerVersion() string {
	return version
}
