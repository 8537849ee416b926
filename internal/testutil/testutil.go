// Package testutil provides shared fixtures for package tests across the
// module: keypair generation, scratch directories, and scaffold invoices.
package testutil

import (
	"crypto/ed25519"
	"testing"

	"github.com/deislabs/go-bindle/types"
)

// TempDir returns a fresh scratch directory that is removed when the test
// completes.
func TempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// Keypair generates a fresh Ed25519 keypair for use in signing tests.
func Keypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating ed25519 keypair: %v", err)
	}
	return pub, priv
}

// Invoice returns a minimal, valid invoice named name/version with no
// parcels or groups, suitable as a scaffold for tests that add their own
// fields.
func Invoice(name, version string) types.Invoice {
	return types.Invoice{
		BindleVersion: "1.0.0",
		Bindle: types.BindleSpec{
			Name:    name,
			Version: version,
		},
	}
}

// InvoiceWithParcel returns a scaffold invoice with a single parcel built
// from data, and returns the parcel's raw bytes alongside it for upload in
// tests.
func InvoiceWithParcel(name, version, parcelName string, data []byte) (types.Invoice, []byte) {
	inv := Invoice(name, version)
	parcel := types.NewParcel(parcelName, "", data)
	inv.Parcel = []types.Parcel{parcel}
	return inv, data
}
