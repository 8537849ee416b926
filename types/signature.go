package types

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// SignatureRole is the role a signer played when producing a Signature.
type SignatureRole string

// The roles a signer may claim, per §3.6.
const (
	RoleCreator  SignatureRole = "creator"
	RoleProxy    SignatureRole = "proxy"
	RoleHost     SignatureRole = "host"
	RoleApprover SignatureRole = "approver"
)

// Signature is an Ed25519 signature over an invoice's cleartext, made by one
// signer in one role.
type Signature struct {
	By        string        `toml:"by"`
	Key       string        `toml:"key"`
	Signature string        `toml:"signature"`
	Role      SignatureRole `toml:"role"`
	At        int64         `toml:"at"`
}

// SignatureErrorKind enumerates the ways signing or verification can fail
// (§4.1, §7).
type SignatureErrorKind int

const (
	// SigDuplicateSignature means this key has already signed the invoice.
	SigDuplicateSignature SignatureErrorKind = iota
	// SigCorruptKey means a signature's key failed to base64-decode or parse as an Ed25519 key.
	SigCorruptKey
	// SigCorruptSignature means a signature block failed to base64-decode or is the wrong length.
	SigCorruptSignature
	// SigUnverified means cryptographic verification of a well-formed signature failed.
	SigUnverified
	// SigNoKnownKey means every signature verified, but none was made with a keyring key.
	SigNoKnownKey
)

func (k SignatureErrorKind) String() string {
	switch k {
	case SigDuplicateSignature:
		return "duplicate signature"
	case SigCorruptKey:
		return "corrupt key"
	case SigCorruptSignature:
		return "corrupt signature"
	case SigUnverified:
		return "unverified"
	case SigNoKnownKey:
		return "no known key"
	default:
		return "signature error"
	}
}

// SignatureError reports a signing or verification failure. Subject carries
// the offending base64 key string for the kinds where one is meaningful.
type SignatureError struct {
	Kind    SignatureErrorKind
	Subject string
}

func (e *SignatureError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	}
	return e.Kind.String()
}

// Cleartext format:
// Matt Butcher <matt.butcher@example.com>
// mybindle
// 0.1.0
// creator
// ~
// e1706ab0a39ac88094b6d54a3f5cdba41fe5a901
// 098fa798779ac88094b6d54a3f5cdba41fe5a901
// 5b992e90b71d5fadab3cd3777230ef370df75f5b

// cleartext builds the signable text for a (by, role) pair over this
// invoice's identity and ordered parcel list (§4.1). This exact layout is a
// cross-implementation compatibility concern: do not reorder it.
func (i Invoice) cleartext(by string, role SignatureRole) string {
	parts := []string{
		by,
		i.Bindle.Name,
		i.Bindle.Version,
		strings.ToLower(string(role)),
		"~",
	}
	for _, p := range i.Parcel {
		parts = append(parts, p.Label.SHA256)
	}
	return strings.Join(parts, "\n")
}

// Sign appends a new signature by (by, role) using privateKey, after
// checking that privateKey's public half has not already signed this
// invoice. Fails with a SigDuplicateSignature SignatureError if it has.
func (i *Invoice) Sign(by string, role SignatureRole, privateKey ed25519.PrivateKey) error {
	pub := privateKey.Public().(ed25519.PublicKey)
	encodedKey := base64.StdEncoding.EncodeToString(pub)

	for _, s := range i.Signature {
		if s.Key == encodedKey {
			return &SignatureError{Kind: SigDuplicateSignature, Subject: encodedKey}
		}
	}

	cleartext := i.cleartext(by, role)
	sig := ed25519.Sign(privateKey, []byte(cleartext))

	i.Signature = append(i.Signature, Signature{
		By:        by,
		Key:       encodedKey,
		Signature: base64.StdEncoding.EncodeToString(sig),
		Role:      role,
		At:        time.Now().Unix(),
	})
	return nil
}

// Verify checks every signature on the invoice cryptographically, and then
// requires at least one verified signature's key to be present in keyring.
// An invoice with no signatures verifies trivially (§4.1).
func (i Invoice) Verify(keyring []ed25519.PublicKey) error {
	if len(i.Signature) == 0 {
		return nil
	}

	known := func(pub ed25519.PublicKey) bool {
		for _, k := range keyring {
			if string(k) == string(pub) {
				return true
			}
		}
		return false
	}

	sawKnownKey := false
	for _, s := range i.Signature {
		cleartext := i.cleartext(s.By, s.Role)

		pub, err := base64.StdEncoding.DecodeString(s.Key)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return &SignatureError{Kind: SigCorruptKey, Subject: s.Key}
		}
		sig, err := base64.StdEncoding.DecodeString(s.Signature)
		if err != nil || len(sig) != ed25519.SignatureSize {
			return &SignatureError{Kind: SigCorruptSignature, Subject: s.Key}
		}

		if !ed25519.Verify(ed25519.PublicKey(pub), []byte(cleartext), sig) {
			return &SignatureError{Kind: SigUnverified, Subject: s.Key}
		}

		if known(ed25519.PublicKey(pub)) {
			sawKnownKey = true
		}
	}

	if !sawKnownKey {
		return &SignatureError{Kind: SigNoKnownKey}
	}
	return nil
}
