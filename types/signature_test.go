package types

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"
)

// keypair generates a fresh Ed25519 keypair. It is defined here rather than
// taken from internal/testutil, which imports this package: an in-package
// test importing it would form an import cycle.
func keypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating ed25519 keypair: %v", err)
	}
	return pub, priv
}

func signedInvoice(t *testing.T) (Invoice, ed25519.PublicKey) {
	t.Helper()
	pub, priv := keypair(t)
	inv := Invoice{
		BindleVersion: "1.0.0",
		Bindle:        BindleSpec{Name: "example.com/foo", Version: "1.0.0"},
		Parcel: []Parcel{
			NewParcel("file.txt", "", []byte("hello")),
		},
	}
	if err := inv.Sign("Matt Butcher <matt@example.com>", RoleCreator, priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return inv, pub
}

func TestSignThenVerify(t *testing.T) {
	inv, pub := signedInvoice(t)
	if err := inv.Verify([]ed25519.PublicKey{pub}); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestVerifyNoSignaturesAlwaysPasses(t *testing.T) {
	inv := Invoice{BindleVersion: "1.0.0", Bindle: BindleSpec{Name: "foo", Version: "1.0.0"}}
	if err := inv.Verify(nil); err != nil {
		t.Errorf("Verify on unsigned invoice should pass, got %v", err)
	}
}

func TestVerifyNoKnownKey(t *testing.T) {
	inv, _ := signedInvoice(t)
	otherPub, _ := keypair(t)
	err := inv.Verify([]ed25519.PublicKey{otherPub})
	sigErr, ok := err.(*SignatureError)
	if !ok {
		t.Fatalf("expected *SignatureError, got %T: %v", err, err)
	}
	if sigErr.Kind != SigNoKnownKey {
		t.Errorf("Kind = %v, want SigNoKnownKey", sigErr.Kind)
	}
}

func TestVerifyCorruptSignature(t *testing.T) {
	inv, pub := signedInvoice(t)
	inv.Signature[0].Signature = base64.StdEncoding.EncodeToString([]byte("too short"))
	err := inv.Verify([]ed25519.PublicKey{pub})
	sigErr, ok := err.(*SignatureError)
	if !ok || sigErr.Kind != SigCorruptSignature {
		t.Errorf("expected SigCorruptSignature, got %v", err)
	}
}

func TestVerifyCorruptKey(t *testing.T) {
	inv, pub := signedInvoice(t)
	inv.Signature[0].Key = base64.StdEncoding.EncodeToString([]byte("too short"))
	err := inv.Verify([]ed25519.PublicKey{pub})
	sigErr, ok := err.(*SignatureError)
	if !ok || sigErr.Kind != SigCorruptKey {
		t.Errorf("expected SigCorruptKey, got %v", err)
	}
}

func TestVerifyTamperedParcelFailsSignature(t *testing.T) {
	inv, pub := signedInvoice(t)
	inv.Parcel[0].Label.SHA256 = "0000000000000000000000000000000000000000000000000000000000000"
	err := inv.Verify([]ed25519.PublicKey{pub})
	sigErr, ok := err.(*SignatureError)
	if !ok || sigErr.Kind != SigUnverified {
		t.Errorf("expected SigUnverified after tampering with a signed field, got %v", err)
	}
}

func TestSignDuplicateSignature(t *testing.T) {
	_, priv := keypair(t)
	inv := Invoice{BindleVersion: "1.0.0", Bindle: BindleSpec{Name: "foo", Version: "1.0.0"}}
	if err := inv.Sign("a", RoleCreator, priv); err != nil {
		t.Fatalf("first Sign: %v", err)
	}
	err := inv.Sign("a", RoleCreator, priv)
	sigErr, ok := err.(*SignatureError)
	if !ok || sigErr.Kind != SigDuplicateSignature {
		t.Errorf("expected SigDuplicateSignature on re-sign with same key, got %v", err)
	}
}
