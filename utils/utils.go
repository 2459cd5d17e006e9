package utils

import (
	"slices"
	"strings"

	"github.com/blang/semver"
)

// CheckSubsetVersion is true if versioncheck is a subset of version
func CheckSubsetVersion(versioncheck, version string) bool {
	versionsplit := strings.Split(versioncheck, ".")
	currVersionsplit := strings.Split(version, ".")

	for idx, part := range versionsplit {
		if part != "" {
			if idx >= len(currVersionsplit) || part != currVersionsplit[idx] {
				return false
			}
		}
	}
	return true
}

// SortVersions orders versions newest first.  Versions that do not parse as
// semver sort after the parsable ones, in reverse lexical order.
func SortVersions(versions []string) []string {
	sorted := slices.Clone(versions)
	slices.SortStableFunc(sorted, func(a, b string) int {
		va, errA := semver.ParseTolerant(a)
		vb, errB := semver.ParseTolerant(b)
		switch {
		case errA == nil && errB == nil:
			return vb.Compare(va)
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		default:
			return strings.Compare(b, a)
		}
	})
	return sorted
}
