// Package id implements parsing, formatting, and canonical hashing of Bindle
// aggregate identifiers ("name/version").
package id

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// segmentPattern matches a single slash-delimited path segment of a bindle name.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ID is an immutable, validated Bindle identifier: a slash-delimited name
// paired with a semantic version.
type ID struct {
	name    string
	version *semver.Version
}

// New validates and constructs an ID from a separate name and version string.
func New(name, version string) (ID, error) {
	if err := validateName(name); err != nil {
		return ID{}, err
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return ID{}, fmt.Errorf("invalid version %q: %w", version, err)
	}
	return ID{name: name, version: v}, nil
}

// Parse splits a combined "name/version" string at its final slash and
// validates both halves. The name itself may contain slashes, so the split
// point is the last one.
func Parse(full string) (ID, error) {
	idx := strings.LastIndex(full, "/")
	if idx < 0 {
		return ID{}, fmt.Errorf("malformed id %q: missing version segment", full)
	}
	return New(full[:idx], full[idx+1:])
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	for _, seg := range strings.Split(name, "/") {
		if !segmentPattern.MatchString(seg) {
			return fmt.Errorf("invalid name segment %q in %q", seg, name)
		}
	}
	return nil
}

// Name returns the path portion of the id.
func (i ID) Name() string { return i.name }

// Version returns the parsed semantic version.
func (i ID) Version() *semver.Version { return i.version }

// VersionString returns the version exactly as parsed (original form).
func (i ID) VersionString() string { return i.version.Original() }

// String renders the canonical "name/version" form.
func (i ID) String() string {
	return i.name + "/" + i.VersionString()
}

// Sha returns the lowercase hex SHA-256 of "name/version" — the canonical,
// on-disk and on-wire key for this aggregate.
func (i ID) Sha() string {
	sum := sha256.Sum256([]byte(i.String()))
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two ids are structurally identical.
func (i ID) Equal(other ID) bool {
	return i.name == other.name && i.version.Original() == other.version.Original()
}

// IsZero reports whether this ID is the unconstructed zero value.
func (i ID) IsZero() bool {
	return i.name == "" && i.version == nil
}
