package provider

import (
	"errors"
	"fmt"
)

// Kind enumerates the closed error taxonomy every provider layer surfaces.
type Kind int

const (
	// KindNotFound means the requested entity is absent.
	KindNotFound Kind = iota
	// KindInvoiceExists means create of an existing, non-identical invoice was attempted.
	KindInvoiceExists
	// KindInvoiceNotFound means a parcel upload references a non-existent invoice.
	KindInvoiceNotFound
	// KindYanked means a non-yanked read of a yanked invoice was attempted.
	KindYanked
	// KindDigestMismatch means parcel bytes disagree with the declared sha256.
	KindDigestMismatch
	// KindSizeMismatch means parcel bytes disagree with the declared size.
	KindSizeMismatch
	// KindInvalidID means a malformed name/version was supplied.
	KindInvalidID
	// KindMalformedInvoice means structural or TOML parse failure.
	KindMalformedInvoice
	// KindDuplicateSignature means the signing key already signed this invoice.
	KindDuplicateSignature
	// KindCorruptKey means a signature's public key failed to base64-decode or parse.
	KindCorruptKey
	// KindCorruptSignature means a signature block failed to base64-decode or parse.
	KindCorruptSignature
	// KindUnverified means a signature failed Ed25519 cryptographic verification.
	KindUnverified
	// KindNoKnownKey means no verified signature's key is present in the keyring.
	KindNoKnownKey
	// KindIO means an underlying I/O failure occurred.
	KindIO
	// KindTransport means a remote call failed (wraps the proxy's response).
	KindTransport
)

var kindNames = map[Kind]string{
	KindNotFound:           "not found",
	KindInvoiceExists:      "invoice exists",
	KindInvoiceNotFound:    "invoice not found",
	KindYanked:             "yanked",
	KindDigestMismatch:     "digest mismatch",
	KindSizeMismatch:       "size mismatch",
	KindInvalidID:          "invalid id",
	KindMalformedInvoice:   "malformed invoice",
	KindDuplicateSignature: "duplicate signature",
	KindCorruptKey:         "corrupt key",
	KindCorruptSignature:   "corrupt signature",
	KindUnverified:         "unverified",
	KindNoKnownKey:         "no known key",
	KindIO:                 "io error",
	KindTransport:          "transport error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is the concrete error type every layer of the provider stack returns.
// Subject carries the offending value for kinds where one is meaningful
// (e.g. the base64 key string for KindCorruptKey), and Cause carries an
// optional wrapped underlying error (e.g. the *os.PathError behind KindIO).
type Error struct {
	Kind    Kind
	Subject string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Subject != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Subject, e.Cause)
	case e.Subject != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
	default:
		return e.Kind.String()
	}
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with no subject or cause.
func New(kind Kind) *Error {
	return &Error{Kind: kind}
}

// WithSubject builds an Error carrying an offending-value subject (e.g. a
// corrupt base64 key).
func WithSubject(kind Kind, subject string) *Error {
	return &Error{Kind: kind, Subject: subject}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
