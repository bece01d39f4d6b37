package sdbx

import "fmt"

// Version constants
const (
	// Major is the major version number
	Major = 0

	// Minor is the minor version number
	Minor = 1

	// Patch is the patch version number
	Patch = 0
)

// VersionInfo contains version information in the engine binding's shape.
type VersionInfo struct {
	Major    uint8
	Minor    uint8
	Release  uint8
	Revision uint16
	Git      string
	Describe string
	Datetime string
	Tree     string
	Commit   string
	Sourcery string
}

// Version returns the version string of sdbx.
func Version() string {
	return fmt.Sprintf("sdbx %d.%d.%d", Major, Minor, Patch)
}

// GetVersionInfo returns version information in the engine binding's shape.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Major:    Major,
		Minor:    Minor,
		Release:  Patch,
		Describe: fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch),
		Sourcery: "sdbx",
	}
}
