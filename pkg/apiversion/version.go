// Package apiversion models the (major, minor) API versions that group
// operations into separately published documents.
package apiversion

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidVersion is returned when a string cannot be read as an API version
var ErrInvalidVersion = errors.New("invalid api version")

// Version is an immutable API version such as v1 or v2.1
type Version struct {
	major uint64
	minor uint64
}

// New creates a version from its components
func New(major, minor uint64) Version {
	return Version{major: major, minor: minor}
}

// Parse reads "2", "v2", "2.0" or "v2.1". Patch components, prerelease tags
// and build metadata are rejected.
func Parse(s string) (Version, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" || raw == "v" {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	sv, err := semver.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, s, err)
	}
	if strings.Count(strings.TrimPrefix(raw, "v"), ".") > 1 || sv.Patch() != 0 {
		return Version{}, fmt.Errorf("%w: %q: patch versions are not api versions", ErrInvalidVersion, s)
	}
	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return Version{}, fmt.Errorf("%w: %q: prerelease and metadata are not supported", ErrInvalidVersion, s)
	}

	return Version{major: sv.Major(), minor: sv.Minor()}, nil
}

// MustParse is Parse for constants; it panics on error
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Major returns the major component
func (v Version) Major() uint64 { return v.major }

// Minor returns the minor component
func (v Version) Minor() uint64 { return v.minor }

// String returns the canonical group name, "v2" or "v2.1"
func (v Version) String() string {
	return "v" + v.Segment()
}

// Segment returns the form used inside URLs, "2" or "2.1"
func (v Version) Segment() string {
	if v.minor == 0 {
		return fmt.Sprintf("%d", v.major)
	}
	return fmt.Sprintf("%d.%d", v.major, v.minor)
}

// Compare returns -1, 0 or 1
func (v Version) Compare(o Version) int {
	switch {
	case v.major < o.major:
		return -1
	case v.major > o.major:
		return 1
	case v.minor < o.minor:
		return -1
	case v.minor > o.minor:
		return 1
	}
	return 0
}

// Equal reports whether both versions are the same
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// Less reports whether v sorts before o
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// MarshalText implements encoding.TextMarshaler
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseList parses a comma separated list such as "v1, v2". Empty entries
// are skipped and duplicates collapsed; the result is sorted ascending.
func ParseList(s string) ([]Version, error) {
	var versions []Version
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		v, err := Parse(part)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return Sort(versions), nil
}

// Sort returns a sorted copy of versions with duplicates removed (oldest first)
func Sort(versions []Version) []Version {
	out := make([]Version, 0, len(versions))
	for _, v := range versions {
		if !Contains(out, v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Less(out[j])
	})
	return out
}

// Contains reports whether versions holds v
func Contains(versions []Version, v Version) bool {
	for _, candidate := range versions {
		if candidate.Equal(v) {
			return true
		}
	}
	return false
}

// Strings renders versions in their canonical form
func Strings(versions []Version) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}
	return out
}

// Latest returns the newest version, or false for an empty slice
func Latest(versions []Version) (Version, bool) {
	if len(versions) == 0 {
		return Version{}, false
	}
	sorted := Sort(versions)
	return sorted[len(sorted)-1], true
}
