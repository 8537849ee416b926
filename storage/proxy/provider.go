// Package proxy implements the Bindle Provider contract by forwarding every
// operation to a remote Bindle server over HTTP/2 (§4.5). It never touches
// local disk; callers that want read-through caching should compose a
// Provider from this package with a storage/file Provider via storage/cache.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deislabs/go-bindle/client"
	bindlelog "github.com/deislabs/go-bindle/log"
	"github.com/deislabs/go-bindle/provider"
	"github.com/deislabs/go-bindle/types"
)

// Provider forwards all operations to a remote Bindle server.
type Provider struct {
	client *client.Client
	logger *logrus.Entry
}

// New wraps an existing client.Client as a Provider.
func New(c *client.Client) *Provider {
	return &Provider{client: c, logger: bindlelog.New("storage/proxy")}
}

// CreateInvoice forwards inv to the remote server.
func (p *Provider) CreateInvoice(ctx context.Context, inv types.Invoice) (types.Invoice, []types.Label, error) {
	resp, err := p.client.CreateInvoice(ctx, inv)
	if err != nil {
		return types.Invoice{}, nil, translateErr(err)
	}
	return resp.Invoice, resp.Missing, nil
}

// GetInvoice forwards the read to the remote server.
func (p *Provider) GetInvoice(ctx context.Context, id string) (types.Invoice, error) {
	inv, err := p.client.GetInvoice(ctx, id)
	if err != nil {
		return types.Invoice{}, translateErr(err)
	}
	return *inv, nil
}

// GetYankedInvoice forwards the read to the remote server, bypassing the yank filter.
func (p *Provider) GetYankedInvoice(ctx context.Context, id string) (types.Invoice, error) {
	inv, err := p.client.GetYankedInvoice(ctx, id)
	if err != nil {
		return types.Invoice{}, translateErr(err)
	}
	return *inv, nil
}

// YankInvoice forwards the yank request to the remote server.
func (p *Provider) YankInvoice(ctx context.Context, id string) error {
	if err := p.client.YankInvoice(ctx, id); err != nil {
		return translateErr(err)
	}
	return nil
}

// CreateParcel streams data to the remote server. size is not separately
// enforced here; the remote server is responsible for validating it against
// the declared label. A rejection with HTTP 412 or 422 surfaces through
// translateErr as KindDigestMismatch; size and digest disagreements are not
// told apart.
func (p *Provider) CreateParcel(ctx context.Context, id string, sha256 string, data io.Reader, size int64) error {
	if err := p.client.CreateParcelFromReader(ctx, id, sha256, data); err != nil {
		return translateErr(err)
	}
	return nil
}

// GetParcel streams the parcel back from the remote server.
func (p *Provider) GetParcel(ctx context.Context, id string, sha256 string) (io.ReadCloser, error) {
	rc, err := p.client.GetParcelReader(ctx, id, sha256)
	if err != nil {
		return nil, translateErr(err)
	}
	return rc, nil
}

// ParcelExists asks the remote server's missing-parcels view whether sha256
// is already present for id.
func (p *Provider) ParcelExists(ctx context.Context, id string, sha256 string) (bool, error) {
	missing, err := p.client.GetMissingParcels(ctx, id)
	if err != nil {
		return false, translateErr(err)
	}
	for _, label := range missing.Missing {
		if label.SHA256 == sha256 {
			return false, nil
		}
	}
	return true, nil
}

// translateErr maps the HTTP-status-coded errors returned by client.Client
// into the provider.Kind taxonomy so callers can treat a proxy.Provider
// uniformly with storage/file.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pe *provider.Error
	if errors.As(err, &pe) {
		return pe
	}

	code, ok := statusCode(err)
	if !ok {
		return provider.Wrap(provider.KindTransport, err)
	}

	switch code {
	case http.StatusNotFound:
		return provider.Wrap(provider.KindNotFound, err)
	case http.StatusConflict:
		return provider.Wrap(provider.KindInvoiceExists, err)
	case http.StatusGone:
		return provider.Wrap(provider.KindYanked, err)
	case http.StatusBadRequest:
		return provider.Wrap(provider.KindMalformedInvoice, err)
	case http.StatusPreconditionFailed, http.StatusUnprocessableEntity:
		return provider.Wrap(provider.KindDigestMismatch, err)
	default:
		return provider.Wrap(provider.KindTransport, err)
	}
}

// statusCode scrapes the HTTP status code out of the error text produced by
// client.unmarshalResponse, which formats it as "... (HTTP status code NNN)".
func statusCode(err error) (int, bool) {
	const marker = "HTTP status code "
	msg := err.Error()
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return 0, false
	}
	rest := msg[idx+len(marker):]
	end := strings.IndexAny(rest, ":)")
	if end < 0 {
		end = len(rest)
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if convErr != nil {
		return 0, false
	}
	return code, true
}
