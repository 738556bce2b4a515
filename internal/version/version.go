package version

import (
	"fmt"
	"regexp"
	"strings"
)

var version = "dev"

// String returns the build version for the current binary.
func String() string {
	return version
}

// ForTesting overrides the version string and returns a cleanup function
// that restores the original value. Must not be called concurrently.
func ForTesting(v string) func() {
	original := version
	version = v
	return func() { version = original }
}

// gitDescribeSuffix matches the trailing "-N-gHASH" added by git describe
// (e.g., "0.3.0-5-gabcdef" → strip "-5-gabcdef").
var gitDescribeSuffix = regexp.MustCompile(`-\d+-g[0-9a-f]+$`)

func normalizeVersion(v string) string {
	v = strings.TrimPrefix(v, "v")
	return gitDescribeSuffix.ReplaceAllString(v, "")
}

// FormatVersion returns a display-friendly version string with a "v"
// prefix. "dev" and empty strings are returned as-is.
func FormatVersion(v string) string {
	if v == "" || v == "dev" {
		return v
	}
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// CheckConfigVersion compares the version that wrote a config file with the
// running build. It returns a warning when their major.minor differ, and an
// empty string when they match or either side is a development build.
func CheckConfigVersion(written string) string {
	if written == "" || version == "" || written == "dev" || version == "dev" {
		return ""
	}
	if majorMinor(normalizeVersion(written)) == majorMinor(normalizeVersion(version)) {
		return ""
	}
	return fmt.Sprintf(
		"config written by notespointer %s, running %s; run `notespointer config init --force` to refresh defaults",
		FormatVersion(written), FormatVersion(version),
	)
}

func majorMinor(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return v
	}
	return parts[0] + "." + parts[1]
}
