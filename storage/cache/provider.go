// Package cache implements a read-through Bindle Provider that composes a
// remote upstream with a local backing store (§4.6). Reads are served from
// local when present; on a local miss, exactly one upstream fetch per key is
// in flight at a time and its result is best-effort mirrored into local
// before being returned to every waiter. Writes always go to upstream first
// and are mirrored into local only on success.
package cache

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	bindlelog "github.com/deislabs/go-bindle/log"
	"github.com/deislabs/go-bindle/provider"
	"github.com/deislabs/go-bindle/types"
)

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	InvoiceHits   uint64
	InvoiceMisses uint64
	ParcelHits    uint64
	ParcelMisses  uint64
	FillErrors    uint64
}

// Provider composes an upstream Provider (typically storage/proxy, backed by
// a remote Bindle server) with a local Provider (typically storage/file) to
// serve reads from local whenever possible.
type Provider struct {
	upstream provider.Provider
	local    provider.Provider
	logger   *logrus.Entry

	group singleflight.Group

	invoiceHits   uint64
	invoiceMisses uint64
	parcelHits    uint64
	parcelMisses  uint64
	fillErrors    uint64
}

// New returns a cache Provider that serves reads from local first, falling
// back to upstream on a miss.
func New(upstream, local provider.Provider) *Provider {
	return &Provider{
		upstream: upstream,
		local:    local,
		logger:   bindlelog.New("storage/cache"),
	}
}

// Stats returns a snapshot of the cache's hit/miss counters.
func (p *Provider) Stats() Stats {
	return Stats{
		InvoiceHits:   atomic.LoadUint64(&p.invoiceHits),
		InvoiceMisses: atomic.LoadUint64(&p.invoiceMisses),
		ParcelHits:    atomic.LoadUint64(&p.parcelHits),
		ParcelMisses:  atomic.LoadUint64(&p.parcelMisses),
		FillErrors:    atomic.LoadUint64(&p.fillErrors),
	}
}

// CreateInvoice always writes through to upstream; on success it mirrors the
// stored invoice into local on a best-effort basis, since creation failures
// in local should not fail a successful upstream create.
func (p *Provider) CreateInvoice(ctx context.Context, inv types.Invoice) (types.Invoice, []types.Label, error) {
	stored, missing, err := p.upstream.CreateInvoice(ctx, inv)
	if err != nil {
		return types.Invoice{}, nil, err
	}
	if _, _, err := p.local.CreateInvoice(ctx, stored); err != nil && !provider.Is(err, provider.KindInvoiceExists) {
		p.logger.WithError(err).Warn("failed to mirror invoice into local cache")
		atomic.AddUint64(&p.fillErrors, 1)
	}
	return stored, missing, nil
}

// GetInvoice serves from local if present, otherwise fetches from upstream
// (at most once per id concurrently) and best-effort fills local. Per the
// cache's propagation policy, only a local KindNotFound triggers an
// upstream attempt; every other local error (e.g. KindYanked, KindIO)
// propagates directly.
func (p *Provider) GetInvoice(ctx context.Context, id string) (types.Invoice, error) {
	if inv, err := p.local.GetInvoice(ctx, id); err == nil {
		atomic.AddUint64(&p.invoiceHits, 1)
		return inv, nil
	} else if !provider.Is(err, provider.KindNotFound) {
		return types.Invoice{}, err
	}
	atomic.AddUint64(&p.invoiceMisses, 1)

	v, err, _ := p.group.Do("invoice:"+id, func() (interface{}, error) {
		inv, err := p.upstream.GetInvoice(ctx, id)
		if err != nil {
			return types.Invoice{}, err
		}
		p.fillInvoice(ctx, inv)
		return inv, nil
	})
	if err != nil {
		return types.Invoice{}, err
	}
	return v.(types.Invoice), nil
}

// GetYankedInvoice bypasses the local yank filter, always consulting
// upstream directly: a locally cached copy may predate the yank.
func (p *Provider) GetYankedInvoice(ctx context.Context, id string) (types.Invoice, error) {
	inv, err := p.upstream.GetYankedInvoice(ctx, id)
	if err != nil {
		return types.Invoice{}, err
	}
	p.fillInvoice(ctx, inv)
	return inv, nil
}

func (p *Provider) fillInvoice(ctx context.Context, inv types.Invoice) {
	if _, _, err := p.local.CreateInvoice(ctx, inv); err != nil && !provider.Is(err, provider.KindInvoiceExists) {
		p.logger.WithError(err).Warn("failed to fill invoice into local cache")
		atomic.AddUint64(&p.fillErrors, 1)
	}
}

// ensureLocalInvoice best-effort fetches id's invoice from upstream and
// mirrors it into local if local does not already have it. A parcel cannot
// be stored locally until its owning invoice has declared it.
func (p *Provider) ensureLocalInvoice(ctx context.Context, id string) {
	if _, err := p.local.GetYankedInvoice(ctx, id); err == nil {
		return
	}
	if inv, err := p.upstream.GetYankedInvoice(ctx, id); err == nil {
		p.fillInvoice(ctx, inv)
	}
}

// YankInvoice writes through to upstream and mirrors the yank locally on a
// best-effort basis.
func (p *Provider) YankInvoice(ctx context.Context, id string) error {
	if err := p.upstream.YankInvoice(ctx, id); err != nil {
		return err
	}
	if err := p.local.YankInvoice(ctx, id); err != nil && !provider.Is(err, provider.KindNotFound) {
		p.logger.WithError(err).Warn("failed to mirror yank into local cache")
		atomic.AddUint64(&p.fillErrors, 1)
	}
	return nil
}

// CreateParcel writes through to upstream, buffering data so it can also be
// replayed into local. Large parcels pay a memory cost here in exchange for
// a simple single-pass API; callers who cannot afford that should write
// directly to storage/proxy and let a subsequent GetParcel populate local.
func (p *Provider) CreateParcel(ctx context.Context, id string, sha256 string, data io.Reader, size int64) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if err := p.upstream.CreateParcel(ctx, id, sha256, bytes.NewReader(buf), size); err != nil {
		return err
	}
	if err := p.local.CreateParcel(ctx, id, sha256, bytes.NewReader(buf), size); err != nil {
		p.logger.WithError(err).Warn("failed to mirror parcel into local cache")
		atomic.AddUint64(&p.fillErrors, 1)
	}
	return nil
}

// GetParcel serves from local if present, otherwise fetches from upstream
// (at most once per key concurrently) and best-effort fills local. Only a
// local KindNotFound triggers an upstream attempt; other local errors
// propagate directly.
func (p *Provider) GetParcel(ctx context.Context, id string, sha256 string) (io.ReadCloser, error) {
	if rc, err := p.local.GetParcel(ctx, id, sha256); err == nil {
		atomic.AddUint64(&p.parcelHits, 1)
		return rc, nil
	} else if !provider.Is(err, provider.KindNotFound) {
		return nil, err
	}
	atomic.AddUint64(&p.parcelMisses, 1)

	v, err, _ := p.group.Do("parcel:"+id+"/"+sha256, func() (interface{}, error) {
		rc, err := p.upstream.GetParcel(ctx, id, sha256)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		buf, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		p.ensureLocalInvoice(ctx, id)
		if err := p.local.CreateParcel(ctx, id, sha256, bytes.NewReader(buf), int64(len(buf))); err != nil {
			p.logger.WithError(err).Warn("failed to fill parcel into local cache")
			atomic.AddUint64(&p.fillErrors, 1)
		}
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(v.([]byte))), nil
}

// ParcelExists checks local first, falling back to upstream on a miss.
func (p *Provider) ParcelExists(ctx context.Context, id string, sha256 string) (bool, error) {
	exists, err := p.local.ParcelExists(ctx, id, sha256)
	if err != nil {
		return false, err
	}
	if exists {
		atomic.AddUint64(&p.parcelHits, 1)
		return true, nil
	}
	atomic.AddUint64(&p.parcelMisses, 1)
	return p.upstream.ParcelExists(ctx, id, sha256)
}
