package version

// Version is the current serp release.
const Version = "0.4.0"

// BuildVersion returns the version string for display
func BuildVersion() string {
	return "serp version " + Version
}

// APIVersion returns just the version number for API responses
func APIVersion() string {
	return Version
}

// UserAgent is sent with every search API request.
func UserAgent() string {
	return "serp/" + Version + " (+https://github.com/rubiojr/serp)"
}
