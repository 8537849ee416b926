// Package semverutil implements the SemVer requirement matching rules used
// by invoice version filtering and search.
package semverutil

import "github.com/Masterminds/semver/v3"

// VersionInRange reports whether version satisfies requirement.
//
// An empty requirement matches anything. A requirement that fails to parse
// matches nothing. A version that fails to parse matches nothing (unless the
// requirement is empty). Otherwise the match is delegated to
// Masterminds/semver/v3, whose unprefixed version requirements ("1.2.3")
// already mean an exact match rather than a caret range, so no npm
// compatibility shim is needed here.
func VersionInRange(version, requirement string) bool {
	if requirement == "" {
		return true
	}

	constraint, err := semver.NewConstraint(requirement)
	if err != nil {
		return false
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}

	ok, _ := constraint.Validate(v)
	return ok
}
