package framecast

import (
	"github.com/mob852/framecast/pkg/integrity"
	"github.com/mob852/framecast/pkg/log"
	"github.com/mob852/framecast/pkg/wire"
)

// Version information for the framecast module.
const (
	// Version is the current version of the framecast module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)

// ModuleVersions returns the versions of all sub-modules.
func ModuleVersions() map[string]string {
	return map[string]string{
		"framecast": Version,
		"wire":      wire.Version,
		"integrity": integrity.Version,
		"log":       log.Version,
	}
}

// CompatibilityMatrix returns the minimum compatible versions of all sub-modules.
func CompatibilityMatrix() map[string]string {
	return map[string]string{
		"framecast": MinCompatibleVersion,
		"wire":      wire.MinCompatibleVersion,
		"integrity": integrity.MinCompatibleVersion,
		"log":       log.MinCompatibleVersion,
	}
}
