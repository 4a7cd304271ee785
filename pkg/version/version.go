// Package version exposes build-time version information for the salvage binary.
package version

// Set via -ldflags at release build time.
var (
	// Version is the semantic version of the binary.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "none"
	// Date is the build timestamp.
	Date = "unknown"
)
