// Package provider defines the uniform storage contract every Bindle backend
// (file, proxy, cache) satisfies, along with the closed error taxonomy every
// layer surfaces.
package provider

import (
	"context"
	"io"

	"github.com/deislabs/go-bindle/types"
)

// Provider is the capability set a Bindle storage backend must implement:
// create/read invoices, yank, and create/read/probe parcels.
type Provider interface {
	// CreateInvoice validates and stores inv, returning the stored invoice
	// (as persisted) and the labels of any declared parcels not yet present.
	CreateInvoice(ctx context.Context, inv types.Invoice) (types.Invoice, []types.Label, error)

	// GetInvoice returns the invoice for id. Fails with KindNotFound if
	// absent, or KindYanked if the invoice has been yanked.
	GetInvoice(ctx context.Context, id string) (types.Invoice, error)

	// GetYankedInvoice is like GetInvoice but returns yanked invoices too.
	GetYankedInvoice(ctx context.Context, id string) (types.Invoice, error)

	// YankInvoice marks the invoice for id as withdrawn. Idempotent.
	YankInvoice(ctx context.Context, id string) error

	// CreateParcel validates that the streamed bytes hash to sha256 and
	// total size bytes, then stores them under the aggregate id.
	CreateParcel(ctx context.Context, id string, sha256 string, data io.Reader, size int64) error

	// GetParcel streams back the stored bytes for sha256 within id.
	GetParcel(ctx context.Context, id string, sha256 string) (io.ReadCloser, error)

	// ParcelExists reports whether the parcel identified by sha256 has been
	// uploaded for the aggregate id.
	ParcelExists(ctx context.Context, id string, sha256 string) (bool, error)
}
