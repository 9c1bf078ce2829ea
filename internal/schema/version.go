package schema

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a strict MAJOR.MINOR.PATCH tag.
func ParseVersion(tag string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(tag)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidVersion, tag, err)
	}
	return v, nil
}

// ValidVersion reports whether tag is a strict MAJOR.MINOR.PATCH tag.
func ValidVersion(tag string) bool {
	_, err := semver.StrictNewVersion(tag)
	return err == nil
}

// SortVersions orders tags ascending by semantic precedence. Tags that do
// not parse sort last, by string.
func SortVersions(tags []string) {
	sort.SliceStable(tags, func(i, j int) bool {
		a, errA := semver.StrictNewVersion(tags[i])
		b, errB := semver.StrictNewVersion(tags[j])
		switch {
		case errA == nil && errB == nil:
			return a.LessThan(b)
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return tags[i] < tags[j]
		}
	})
}
