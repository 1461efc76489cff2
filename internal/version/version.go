// Package version implements the WIP prerelease versioning scheme.
//
// A WIP version marks an uncommitted local save of a formula. It is a
// normal semver whose prerelease carries two fixed-width base-36
// identifiers: an epoch-seconds timestamp and a tag derived from the
// absolute workspace path. The encoding is deterministic — saving the
// same workspace twice within one second produces the same version, so
// repeated saves overwrite one registry slot instead of piling up.
package version

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Base-36 digits, letters first so zero-padding yields a leading letter
// and the prerelease identifier can never be mistaken for a numeric one.
const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const (
	timestampWidth = 8 // epoch seconds fit in 8 base-36 digits until ~year 4453
	tagWidth       = 6
)

// legacySuffix is the old single-identifier WIP marker ("1.2.0-wip").
const legacySuffix = "wip"

// Wip is a decoded WIP version.
type Wip struct {
	Base      string    // stable major.minor.patch
	Timestamp time.Time // second precision
	Tag       string    // workspace tag, 6 base-36 chars
}

// GenerateWip builds the WIP version for a stable base, a workspace path,
// and a point in time. The stable base must carry no prerelease.
func GenerateWip(stable, workspacePath string, now time.Time) (string, error) {
	v, err := semver.NewVersion(stable)
	if err != nil {
		return "", fmt.Errorf("invalid base version %q: %w", stable, err)
	}
	if v.Prerelease() != "" {
		return "", fmt.Errorf("base version %q already has a prerelease", stable)
	}
	ts := encode(uint64(now.Unix()), timestampWidth)
	return fmt.Sprintf("%d.%d.%d-%s.%s", v.Major(), v.Minor(), v.Patch(), ts, WorkspaceTag(workspacePath)), nil
}

// ParseWip decodes a WIP version. Returns nil, false for stable versions,
// legacy "-wip" versions, and anything else that does not match the
// two-identifier form.
func ParseWip(version string) (*Wip, bool) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, false
	}
	parts := strings.Split(v.Prerelease(), ".")
	if len(parts) != 2 || len(parts[0]) != timestampWidth || len(parts[1]) != tagWidth {
		return nil, false
	}
	secs, ok := decode(parts[0])
	if !ok {
		return nil, false
	}
	if _, ok := decode(parts[1]); !ok {
		return nil, false
	}
	return &Wip{
		Base:      fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch()),
		Timestamp: time.Unix(int64(secs), 0).UTC(),
		Tag:       parts[1],
	}, true
}

// WorkspaceTag returns the fixed-width tag for an absolute workspace path.
func WorkspaceTag(workspacePath string) string {
	h := fnv.New64a()
	h.Write([]byte(workspacePath)) //nolint:errcheck // hash.Hash never errors
	return encode(h.Sum64(), tagWidth)
}

// ExtractBase strips any prerelease — the two-identifier WIP form, the
// legacy "-wip" suffix, or any other prerelease — and returns the stable
// major.minor.patch.
func ExtractBase(version string) (string, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return "", fmt.Errorf("invalid version %q: %w", version, err)
	}
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch()), nil
}

// IsLocal reports whether a version is local-only: true iff it carries a
// non-empty prerelease. Local versions must never be published as-is.
func IsLocal(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return v.Prerelease() != ""
}

// IsLegacyWip reports whether a version uses the old "-wip" suffix.
func IsLegacyWip(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return v.Prerelease() == legacySuffix
}

// NextStable returns the stable version a WIP version should publish as:
// the base itself when the registry has no stable copy of it yet,
// otherwise the base with the patch bumped past every version in taken.
func NextStable(wipVersion string, taken []string) (string, error) {
	base, err := ExtractBase(wipVersion)
	if err != nil {
		return "", err
	}
	v := semver.MustParse(base)
	for {
		free := true
		for _, t := range taken {
			tv, err := semver.NewVersion(t)
			if err != nil || tv.Prerelease() != "" {
				continue
			}
			if tv.Equal(v) {
				free = false
				break
			}
		}
		if free {
			return v.String(), nil
		}
		next := v.IncPatch()
		v = &next
	}
}

// Compare orders two version strings semver-wise. Invalid versions sort
// first so corrupted registry entries never shadow real ones.
func Compare(a, b string) int {
	av, aerr := semver.NewVersion(a)
	bv, berr := semver.NewVersion(b)
	switch {
	case aerr != nil && berr != nil:
		return strings.Compare(a, b)
	case aerr != nil:
		return -1
	case berr != nil:
		return 1
	}
	return av.Compare(bv)
}

// Sort orders version strings ascending in place.
func Sort(versions []string) {
	sort.Slice(versions, func(i, j int) bool { return Compare(versions[i], versions[j]) < 0 })
}

// HighestSatisfying picks the highest version in available that satisfies
// the constraint. An exact version string is a valid constraint (equality).
// Returns "", false when nothing satisfies.
func HighestSatisfying(available []string, constraint string) (string, bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", false, fmt.Errorf("invalid version range %q: %w", constraint, err)
	}
	best := ""
	var bestV *semver.Version
	for _, a := range available {
		v, err := semver.NewVersion(a)
		if err != nil {
			continue // skip unparseable registry entries
		}
		if !c.Check(v) {
			continue
		}
		if bestV == nil || v.GreaterThan(bestV) {
			best, bestV = a, v
		}
	}
	return best, bestV != nil, nil
}

// Satisfies reports whether version satisfies every constraint in ranges.
func Satisfies(version string, ranges []string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", version, err)
	}
	for _, r := range ranges {
		c, err := semver.NewConstraint(r)
		if err != nil {
			return false, fmt.Errorf("invalid version range %q: %w", r, err)
		}
		if !c.Check(v) {
			return false, nil
		}
	}
	return true, nil
}

// encode renders n in fixed-width base 36, most significant digit first,
// padded with the zero digit 'a'. Values beyond width digits wrap.
func encode(n uint64, width int) string {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = alphabet[n%36]
		n /= 36
	}
	return string(buf)
}

// decode parses a fixed-width base-36 string produced by encode.
func decode(s string) (uint64, bool) {
	var n uint64
	for i := 0; i < len(s); i++ {
		d := strings.IndexByte(alphabet, s[i])
		if d < 0 {
			return 0, false
		}
		n = n*36 + uint64(d)
	}
	return n, true
}
