package version

// version is overridden at build time via
// -ldflags "-X system-mqtt/internal/version.version=x.y.z".
var version = "0.0.0"

// GetVersion returns the daemon version string. It is surfaced by the
// --version flag and embedded in discovery payloads as sw_version.
func GetVersion() string {
	return version
}
