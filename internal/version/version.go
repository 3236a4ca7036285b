// Package version holds the TRIP module's version string, reported by
// each executable's "version" subcommand.
package version

// Version is the current release version.
const Version = "0.1.0"
