package native

import (
	"strings"

	"golang.org/x/mod/semver"
)

// ParseVersion extracts the semantic version from an OpenCL version string
// of the form "OpenCL <major>.<minor> <vendor-specific>", as returned for
// PlatformVersion and DeviceVersion. The result is in "vMAJOR.MINOR" form.
func ParseVersion(s string) (string, bool) {
	fields := strings.Fields(s)
	if len(fields) < 2 || fields[0] != "OpenCL" {
		return "", false
	}
	v := "v" + fields[1]
	if !semver.IsValid(v) {
		return "", false
	}
	return v, true
}

// AtLeast reports whether the OpenCL version string s is at least min,
// where min is written "MAJOR.MINOR".
func AtLeast(s, min string) bool {
	v, ok := ParseVersion(s)
	if !ok {
		return false
	}
	return semver.Compare(v, "v"+min) >= 0
}
