package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/deislabs/go-bindle/types"

	"github.com/pelletier/go-toml"
	"golang.org/x/net/http2"
)

const invoiceEndpoint = "_i"
const queryEndpoint = "_q"
const tomlMimeType = "application/toml"

// Client is the struct that contains all necessary information for communicating with a Bindle
// Server
type Client struct {
	httpClient http.Client
	baseURL    *url.URL
}

// New returns a new Client configured to use the given baseURL. This URL should be the entire base
// part of your Bindle server. So if your Bindle server is namespaced (with something like v1), then
// the baseURL should contain that part of the URL (e.g. https://bindle.example.com/v1 instead of
// https://bindle.example.com). The tlsConfig parameter is optional and can be used if you have any
// specific TLS configuration options such as internally signed certificates
func New(baseURL string, tlsConfig *tls.Config) (*Client, error) {
	httpClient := http.Client{
		Transport: &http2.Transport{
			AllowHTTP:       true,
			TLSClientConfig: tlsConfig,
		},
	}

	// Strip any trailing slashes first
	stripped := strings.TrimSuffix(baseURL, "/")
	// Validate the baseURL
	u, err := url.Parse(stripped)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    u,
	}, nil
}

// RawRequest performs an HTTP request using the underlying HTTP client and base URL. The given
// path is appended to the URL and the data body is optional. A non-empty contentType is sent as
// the Content-Type header, whether or not a body is given. The request is bound to ctx and will
// be aborted if ctx is cancelled.
func (c *Client) RawRequest(ctx context.Context, path string, method string, data io.Reader, contentType string) (*http.Response, error) {
	u := *c.baseURL
	// Parse as a URL so we can get the separate components
	parsedPath, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	u.Path = u.Path + parsedPath.Path
	u.RawQuery = parsedPath.RawQuery

	req, err := http.NewRequestWithContext(ctx, method, u.String(), data)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.httpClient.Do(req)
}

func (c *Client) requestAndUnmarshal(ctx context.Context, path string, method string, data io.Reader, contentType string, v interface{}) error {
	resp, err := c.RawRequest(ctx, path, method, data, contentType)
	if err != nil {
		return err
	}
	return unmarshalResponse(resp, v)
}

// GetInvoice returns an `Invoice` with the given ID. This will return an error if the invoice is
// yanked
func (c *Client) GetInvoice(ctx context.Context, id string) (*types.Invoice, error) {
	var inv types.Invoice
	if err := c.requestAndUnmarshal(ctx, fmt.Sprintf("/%s/%s", invoiceEndpoint, id), http.MethodGet, nil, "", &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetYankedInvoice is the same as `GetInvoice`, but allows you to return an invoice that has been
// yanked
func (c *Client) GetYankedInvoice(ctx context.Context, id string) (*types.Invoice, error) {
	var inv types.Invoice
	if err := c.requestAndUnmarshal(ctx, fmt.Sprintf("/%s/%s?yanked=true", invoiceEndpoint, id), http.MethodGet, nil, "", &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateInvoice from the given `Invoice` object. Returns a response containing the newly created
// invoice and a list of any missing parcels that need to be uploaded
func (c *Client) CreateInvoice(ctx context.Context, inv types.Invoice) (*types.InvoiceCreateResponse, error) {
	body, err := encodeToBuffer(&inv)
	if err != nil {
		return nil, err
	}

	var invResp types.InvoiceCreateResponse
	if err := c.requestAndUnmarshal(ctx, fmt.Sprintf("/%s", invoiceEndpoint), http.MethodPost, body, tomlMimeType, &invResp); err != nil {
		return nil, err
	}

	return &invResp, nil
}

// CreateInvoiceFromFile is the same as `CreateInvoice`, but instead takes a path to an invoice TOML
// file to send to the server
func (c *Client) CreateInvoiceFromFile(ctx context.Context, path string) (*types.InvoiceCreateResponse, error) {
	body, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var invResp types.InvoiceCreateResponse
	if err := c.requestAndUnmarshal(ctx, fmt.Sprintf("/%s", invoiceEndpoint), http.MethodPost, body, tomlMimeType, &invResp); err != nil {
		return nil, err
	}
	return &invResp, nil
}

// QueryInvoices allows you to search and filter invoices from the Bindle server. Bindle servers are
// allowed to implement their query engines differently, so the number of matches may vary depending
// on the server, particularly in their use of `strict` mode. Returns a `Matches` object containing
// information about the query, pagination data, and the list of responses
func (c *Client) QueryInvoices(ctx context.Context, opts types.QueryOptions) (*types.Matches, error) {
	var matches types.Matches
	if err := c.requestAndUnmarshal(ctx, fmt.Sprintf("/%s%s", queryEndpoint, opts.QueryString()), http.MethodGet, nil, tomlMimeType, &matches); err != nil {
		return nil, err
	}
	return &matches, nil
}

// YankInvoice allows you to "yank," or mark as no longer available, an invoice of the given ID.
// Invoices cannot be deleted from a Bindle server, so this notifies users that it should not be
// consumed
func (c *Client) YankInvoice(ctx context.Context, id string) error {
	return c.requestAndUnmarshal(ctx, fmt.Sprintf("/%s/%s", invoiceEndpoint, id), http.MethodDelete, nil, "", nil)
}

// Performs the request against the parcel endpoint and handles any http errors, returning the HTTP body
func (c *Client) doParcelRequest(ctx context.Context, bindleID string, sha string, method string, body io.Reader) (io.ReadCloser, error) {
	resp, err := c.RawRequest(ctx, fmt.Sprintf("/%s/%s/parcel/%s", invoiceEndpoint, bindleID, sha), method, body, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode > 299 || resp.StatusCode < 200 {
		return nil, unmarshalResponse(resp, nil)
	}
	return resp.Body, nil
}

// GetParcel returns the parcel identified by the Bindle ID and parcel SHA. This loads the data into
// memory as a byte array and is not recommended for use with larger parcels. For larger parcels (or
// when writing directly to another source), use the `GetParcelReader` function instead
func (c *Client) GetParcel(ctx context.Context, bindleID string, sha string) ([]byte, error) {
	body, err := c.doParcelRequest(ctx, bindleID, sha, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}

	defer body.Close()
	return io.ReadAll(body)
}

// GetParcelReader is similar to `GetParcel` but returns the parcel as a reader (for streaming
// purposes). This will be more efficient for larger files
func (c *Client) GetParcelReader(ctx context.Context, bindleID string, sha string) (io.ReadCloser, error) {
	return c.doParcelRequest(ctx, bindleID, sha, http.MethodGet, nil)
}

// CreateParcel uploads a parcel for the given `bindleID`. The `sha` value must match the SHA256 sum
// of the data or the server will reject the parcel. This function takes the parcel data as a raw
// byte array. For larger parcels, it is recommended to use `CreateParcelFromFile` or
// `CreateParcelFromReader` to avoid loading them into memory.
//
// Please note that for best efficiency, consumers should only upload parcels that do not already
// exist as indicated by the server (either in the `InvoiceCreateResponse` or by using the
// `GetMissingParcels` function)
func (c *Client) CreateParcel(ctx context.Context, bindleID string, sha string, data []byte) error {
	_, err := c.doParcelRequest(ctx, bindleID, sha, http.MethodPost, bytes.NewReader(data))
	return err
}

// CreateParcelFromFile is the same as `CreateParcel` but takes a path to a file to upload for a
// parcel. This file will be streamed to the server and not loaded into memory
func (c *Client) CreateParcelFromFile(ctx context.Context, bindleID string, sha string, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = c.doParcelRequest(ctx, bindleID, sha, http.MethodPost, file)
	return err
}

// CreateParcelFromReader is the same as `CreateParcel` but takes anything that is an `io.Reader` to
// use for the parcel. This function will stream the data from the reader to the server
func (c *Client) CreateParcelFromReader(ctx context.Context, bindleID string, sha string, data io.Reader) error {
	_, err := c.doParcelRequest(ctx, bindleID, sha, http.MethodPost, data)
	return err
}

// GetMissingParcels checks with the server if there are any missing parcels for the given Bindle
// ID. Returns a response containing the list of missing parcels, if any
func (c *Client) GetMissingParcels(ctx context.Context, id string) (*types.MissingParcelsResponse, error) {
	var missing types.MissingParcelsResponse
	if err := c.requestAndUnmarshal(ctx, fmt.Sprintf("/%s/%s/missing", invoiceEndpoint, id), http.MethodGet, nil, "", &missing); err != nil {
		return nil, err
	}
	return &missing, nil
}

func unmarshalResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode > 299 || resp.StatusCode < 200 {
		var errorInfo types.ErrorResponse
		var err error
		// Try to get an error message. Not all errors will have them, so do not error out if it
		// fails
		if toml.NewDecoder(resp.Body).Strict(true).Decode(&errorInfo) == nil {
			err = fmt.Errorf("error making request (HTTP status code %v): %s", resp.StatusCode, errorInfo.Error)
		} else {
			err = fmt.Errorf("error making request (HTTP status code %v)", resp.StatusCode)
		}
		return err
	}
	// Sometimes we want to try and unmarshal the error above, but not handle the body
	if v != nil {
		if err := toml.NewDecoder(resp.Body).Strict(true).Decode(v); err != nil {
			return err
		}
	}
	return nil
}

func encodeToBuffer(v interface{}) (io.Reader, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return &buf, nil
}
