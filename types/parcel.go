package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// Parcel is a description of a stored parcel file. A parcel file can be an arbitrary "blob" of
// data. This could be binary or text files. This object contains the metadata and associated
// conditions for using a parcel. For more information, see the Bindle Spec:
// https://github.com/deislabs/bindle/blob/master/docs/bindle-spec.md
type Parcel struct {
	Label      Label      `toml:"label"`
	Conditions *Condition `toml:"conditions,omitempty"`
}

// NewParcel creates a new Parcel, hashing data to populate the label's sha256
// and size fields. If mediaType is empty, the label defaults to
// "application/octet-stream" (§3.2).
func NewParcel(name, mediaType string, data []byte) Parcel {
	sum := sha256.Sum256(data)

	label := Label{
		SHA256:    hex.EncodeToString(sum[:]),
		MediaType: mediaType,
		Name:      name,
		Size:      uint64(len(data)),
	}
	if label.MediaType == "" {
		label.MediaType = defaultMediaType
	}

	return Parcel{Label: label}
}

// MemberOf reports whether this parcel declares membership in the named
// group.
func (p Parcel) MemberOf(group string) bool {
	if p.Conditions == nil {
		return false
	}
	for _, g := range p.Conditions.MemberOf {
		if g == group {
			return true
		}
	}
	return false
}

// IsGlobalGroup reports whether this parcel is a member of the implicit
// global group: true when it has no conditions, or its memberOf list is
// absent or empty (§3.3).
func (p Parcel) IsGlobalGroup() bool {
	if p.Conditions == nil {
		return true
	}
	return len(p.Conditions.MemberOf) == 0
}
