// Package standalone implements the self-contained directory-layout
// snapshot format used to package a single aggregate for offline transfer
// (§4.7):
//
//	<root>/<canonical>/invoice.toml
//	<root>/<canonical>/parcels/<sha256>.dat
package standalone

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"

	"github.com/deislabs/go-bindle/id"
	bindlelog "github.com/deislabs/go-bindle/log"
	"github.com/deislabs/go-bindle/provider"
	"github.com/deislabs/go-bindle/types"
)

const (
	invoiceFile  = "invoice.toml"
	parcelSubdir = "parcels"
	parcelExt    = ".dat"
)

var logger = bindlelog.New("standalone")

// Bindle is an in-memory standalone package: an invoice plus its parcel
// bytes, keyed by sha256.
type Bindle struct {
	Invoice types.Invoice
	Parcels map[string][]byte
}

// path returns the canonical directory a Bindle for inv would live under,
// relative to root.
func path(root string, inv types.Invoice) (string, error) {
	canonical, err := inv.CanonicalName()
	if err != nil {
		return "", provider.Wrap(provider.KindInvalidID, err)
	}
	return filepath.Join(root, canonical), nil
}

// Read loads the standalone bindle for idStr out of root. Fails with
// KindNotFound if the invoice is absent, or with KindNotFound and a
// "MissingParcel:<sha256>" subject if a declared parcel's backing file is
// absent.
func Read(_ context.Context, root string, idStr string) (*Bindle, error) {
	parsed, err := id.Parse(idStr)
	if err != nil {
		return nil, provider.WithSubject(provider.KindInvalidID, idStr)
	}
	dir := filepath.Join(root, parsed.Sha())

	raw, err := os.ReadFile(filepath.Join(dir, invoiceFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, provider.New(provider.KindNotFound)
		}
		return nil, provider.Wrap(provider.KindIO, err)
	}

	var inv types.Invoice
	if err := toml.NewDecoder(bytes.NewReader(raw)).Strict(true).Decode(&inv); err != nil {
		return nil, provider.Wrap(provider.KindMalformedInvoice, err)
	}

	parcels := make(map[string][]byte, len(inv.Parcel))
	for _, parcel := range inv.Parcel {
		sha := parcel.Label.SHA256
		data, err := os.ReadFile(filepath.Join(dir, parcelSubdir, sha+parcelExt))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, provider.WithSubject(provider.KindNotFound, fmt.Sprintf("MissingParcel:%s", sha))
			}
			return nil, provider.Wrap(provider.KindIO, err)
		}
		parcels[sha] = data
	}

	logger.WithField("canonical", parsed.Sha()).WithField("parcels", len(parcels)).Debug("read standalone bindle")
	return &Bindle{Invoice: inv, Parcels: parcels}, nil
}

// Write serializes inv and its parcel bytes into root under inv's canonical
// directory, creating it with restrictive permissions. parcels maps sha256
// to the parcel's raw bytes; it need not cover every declared parcel (a
// partial snapshot is written as-is).
func Write(_ context.Context, root string, inv types.Invoice, parcels map[string][]byte) error {
	dir, err := path(root, inv)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Join(dir, parcelSubdir), 0700); err != nil {
		return provider.Wrap(provider.KindIO, err)
	}

	encoded, err := toml.Marshal(inv)
	if err != nil {
		return provider.Wrap(provider.KindMalformedInvoice, err)
	}
	if err := os.WriteFile(filepath.Join(dir, invoiceFile), encoded, 0600); err != nil {
		return provider.Wrap(provider.KindIO, err)
	}

	for sha, data := range parcels {
		p := filepath.Join(dir, parcelSubdir, sha+parcelExt)
		if err := os.WriteFile(p, data, 0600); err != nil {
			return provider.Wrap(provider.KindIO, err)
		}
	}

	canonical, _ := inv.CanonicalName()
	logger.WithField("canonical", canonical).WithField("parcels", len(parcels)).Info("wrote standalone bindle")
	return nil
}

// uploader is the subset of provider.Provider (or an equivalent remote
// client) Push needs: create the invoice, probe and create parcels.
type uploader interface {
	CreateInvoice(ctx context.Context, inv types.Invoice) (types.Invoice, []types.Label, error)
	ParcelExists(ctx context.Context, id string, sha256 string) (bool, error)
	CreateParcel(ctx context.Context, id string, sha256 string, data io.Reader, size int64) error
}

// Push uploads b's invoice, then every declared parcel in order, to dst.
// Parcels dst already has are skipped.
func (b *Bindle) Push(ctx context.Context, dst uploader) error {
	if _, _, err := dst.CreateInvoice(ctx, b.Invoice); err != nil && !provider.Is(err, provider.KindInvoiceExists) {
		return err
	}

	idStr := b.Invoice.Name()
	for _, parcel := range b.Invoice.Parcel {
		sha := parcel.Label.SHA256
		exists, err := dst.ParcelExists(ctx, idStr, sha)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		data, ok := b.Parcels[sha]
		if !ok {
			return provider.WithSubject(provider.KindNotFound, fmt.Sprintf("MissingParcel:%s", sha))
		}
		if err := dst.CreateParcel(ctx, idStr, sha, bytes.NewReader(data), int64(len(data))); err != nil {
			return err
		}
	}
	return nil
}
