// Package core contains the connection lifecycle logic: controllers,
// connection instances and the process-wide controller registry.
package core

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Version is a supported protocol version, e.g. "1.21.4".
type Version string

var supportedVersions = []Version{
	"1.16", "1.16.1", "1.16.2", "1.16.3", "1.16.4", "1.16.5",
	"1.17", "1.17.1",
	"1.18", "1.18.1", "1.18.2",
	"1.19", "1.19.1", "1.19.2",
	"1.20", "1.20.1", "1.20.2", "1.20.3", "1.20.4", "1.20.5",
	"1.21", "1.21.1", "1.21.2", "1.21.3", "1.21.4", "1.21.5", "1.21.6", "1.21.7",
}

// DefaultVersion is the newest supported protocol version.
func DefaultVersion() Version {
	return supportedVersions[len(supportedVersions)-1]
}

// ParseVersion validates a version string against the supported list.
func ParseVersion(s string) (Version, error) {
	for _, v := range supportedVersions {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unsupported version: %s", s)
}

// Versions returns all supported versions in ascending release order.
func Versions() []Version {
	out := make([]Version, len(supportedVersions))
	copy(out, supportedVersions)
	sort.Slice(out, func(i, j int) bool {
		vi, erri := semver.NewVersion(string(out[i]))
		vj, errj := semver.NewVersion(string(out[j]))
		if erri != nil || errj != nil {
			return out[i] < out[j]
		}
		return vi.LessThan(vj)
	})
	return out
}

func (v Version) String() string {
	return string(v)
}
