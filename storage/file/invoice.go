package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml"

	"github.com/deislabs/go-bindle/id"
	"github.com/deislabs/go-bindle/provider"
	"github.com/deislabs/go-bindle/types"
)

// CreateInvoice validates inv, stores it under its canonical name, indexes
// it, and reports which of its declared parcels have not yet been uploaded
// (§4.3). A retry whose invoice equals the stored one field for field (as
// decoded) succeeds silently; any other retry fails InvoiceExists.
func (p *Provider) CreateInvoice(ctx context.Context, inv types.Invoice) (types.Invoice, []types.Label, error) {
	if err := inv.Validate(); err != nil {
		return types.Invoice{}, nil, provider.Wrap(provider.KindMalformedInvoice, err)
	}

	canonical, err := inv.CanonicalName()
	if err != nil {
		return types.Invoice{}, nil, provider.Wrap(provider.KindInvalidID, err)
	}

	release := p.locks.Acquire(canonical)
	defer release()

	encoded, err := toml.Marshal(inv)
	if err != nil {
		return types.Invoice{}, nil, provider.Wrap(provider.KindMalformedInvoice, err)
	}

	invoicePath := p.invoicePath(canonical)
	if existing, err := os.ReadFile(invoicePath); err == nil {
		var existingInv types.Invoice
		if decodeErr := toml.NewDecoder(bytes.NewReader(existing)).Strict(true).Decode(&existingInv); decodeErr != nil {
			return types.Invoice{}, nil, provider.Wrap(provider.KindMalformedInvoice, decodeErr)
		}
		// Compare decoded structs rather than raw bytes: map key ordering in
		// annotations/feature is not guaranteed stable across encodings, so a
		// byte compare would reject retries that are semantically identical.
		if reflect.DeepEqual(existingInv, inv) {
			p.logger.WithField("canonical", canonical).Debug("idempotent invoice create, already present")
			missing, err := p.missingParcels(ctx, canonical, existingInv)
			if err != nil {
				return types.Invoice{}, nil, err
			}
			return existingInv, missing, nil
		}
		return types.Invoice{}, nil, provider.New(provider.KindInvoiceExists)
	} else if !os.IsNotExist(err) {
		return types.Invoice{}, nil, provider.Wrap(provider.KindIO, err)
	}

	if err := os.MkdirAll(p.parcelDir(canonical), 0700); err != nil {
		return types.Invoice{}, nil, provider.Wrap(provider.KindIO, err)
	}

	tmpPath := filepath.Join(p.invoiceDir(canonical), invoiceFile+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, encoded, 0600); err != nil {
		os.Remove(tmpPath)
		return types.Invoice{}, nil, provider.Wrap(provider.KindIO, err)
	}
	if err := os.Rename(tmpPath, invoicePath); err != nil {
		os.Remove(tmpPath)
		return types.Invoice{}, nil, provider.Wrap(provider.KindIO, err)
	}

	if err := p.index.Index(ctx, inv); err != nil {
		// Rollback: an unindexed invoice must not remain discoverable on disk.
		os.Remove(invoicePath)
		p.logger.WithField("canonical", canonical).WithError(err).Warn("rolled back invoice create after index failure")
		return types.Invoice{}, nil, provider.Wrap(provider.KindIO, err)
	}

	missing, err := p.missingParcels(ctx, canonical, inv)
	if err != nil {
		return types.Invoice{}, nil, err
	}

	p.logger.WithField("canonical", canonical).WithField("missing", len(missing)).Info("created invoice")
	return inv, missing, nil
}

// GetInvoice returns the invoice for idStr. Fails NotFound if absent, Yanked
// if yanked.
func (p *Provider) GetInvoice(ctx context.Context, idStr string) (types.Invoice, error) {
	inv, err := p.readInvoice(idStr)
	if err != nil {
		return types.Invoice{}, err
	}
	if inv.IsYanked() {
		return types.Invoice{}, provider.New(provider.KindYanked)
	}
	return inv, nil
}

// GetYankedInvoice is like GetInvoice but bypasses the yank filter.
func (p *Provider) GetYankedInvoice(ctx context.Context, idStr string) (types.Invoice, error) {
	return p.readInvoice(idStr)
}

func (p *Provider) readInvoice(idStr string) (types.Invoice, error) {
	parsed, err := id.Parse(idStr)
	if err != nil {
		return types.Invoice{}, provider.WithSubject(provider.KindInvalidID, idStr)
	}
	canonical := parsed.Sha()

	raw, err := os.ReadFile(p.invoicePath(canonical))
	if err != nil {
		if os.IsNotExist(err) {
			return types.Invoice{}, provider.New(provider.KindNotFound)
		}
		return types.Invoice{}, provider.Wrap(provider.KindIO, err)
	}

	var inv types.Invoice
	if err := toml.NewDecoder(bytes.NewReader(raw)).Strict(true).Decode(&inv); err != nil {
		return types.Invoice{}, provider.Wrap(provider.KindMalformedInvoice, err)
	}
	return inv, nil
}

// YankInvoice marks the invoice for idStr as withdrawn. Idempotent.
func (p *Provider) YankInvoice(ctx context.Context, idStr string) error {
	parsed, err := id.Parse(idStr)
	if err != nil {
		return provider.WithSubject(provider.KindInvalidID, idStr)
	}
	canonical := parsed.Sha()

	release := p.locks.Acquire(canonical)
	defer release()

	inv, err := p.readInvoice(idStr)
	if err != nil {
		return err
	}
	if inv.IsYanked() {
		return nil
	}

	yanked := true
	inv.Yanked = &yanked

	encoded, err := toml.Marshal(inv)
	if err != nil {
		return provider.Wrap(provider.KindMalformedInvoice, err)
	}

	tmpPath := filepath.Join(p.invoiceDir(canonical), invoiceFile+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, encoded, 0600); err != nil {
		os.Remove(tmpPath)
		return provider.Wrap(provider.KindIO, err)
	}
	if err := os.Rename(tmpPath, p.invoicePath(canonical)); err != nil {
		os.Remove(tmpPath)
		return provider.Wrap(provider.KindIO, err)
	}

	if err := p.index.Index(ctx, inv); err != nil {
		p.logger.WithField("canonical", canonical).WithError(err).Warn("failed to re-index yanked invoice")
		return provider.Wrap(provider.KindIO, err)
	}

	p.logger.WithField("canonical", canonical).Info("yanked invoice")
	return nil
}

// missingParcels returns the labels of inv's declared parcels that have not
// yet been uploaded.
func (p *Provider) missingParcels(ctx context.Context, canonical string, inv types.Invoice) ([]types.Label, error) {
	var missing []types.Label
	for _, parcel := range inv.Parcel {
		exists, err := p.parcelExists(canonical, parcel.Label.SHA256)
		if err != nil {
			return nil, err
		}
		if !exists {
			missing = append(missing, parcel.Label)
		}
	}
	return missing, nil
}
