// Package prism provides the version information for prism.
package prism

// Version is the current version of prism.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
