package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deislabs/go-bindle/types"
	"github.com/pelletier/go-toml"
)

// newTestServer spins up a TLS test server with HTTP/2 negotiated via ALPN,
// matching how Client's http2.Transport actually dials in production
// (plain-text h2c is not wired up, only TLS-negotiated HTTP/2).
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(handler)
	srv.EnableHTTP2 = true
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(srv.URL, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestGetInvoice(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_i/example.com/foo/1.0.0" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", tomlMimeType)
		toml.NewEncoder(w).Encode(types.Invoice{
			BindleVersion: "1.0.0",
			Bindle:        types.BindleSpec{Name: "example.com/foo", Version: "1.0.0"},
		})
	})

	c := newTestClient(t, srv)

	inv, err := c.GetInvoice(context.Background(), "example.com/foo/1.0.0")
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if inv.Bindle.Name != "example.com/foo" {
		t.Errorf("unexpected invoice: %+v", inv)
	}
}

func TestGetInvoiceNotFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		toml.NewEncoder(w).Encode(types.ErrorResponse{Error: "no such invoice"})
	})

	c := newTestClient(t, srv)
	_, err := c.GetInvoice(context.Background(), "example.com/missing/1.0.0")
	if err == nil {
		t.Error("expected an error for a 404 response")
	}
}

func TestCreateInvoice(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var inv types.Invoice
		if err := toml.NewDecoder(r.Body).Decode(&inv); err != nil {
			t.Fatalf("decoding request body: %v", err)
		}
		toml.NewEncoder(w).Encode(types.InvoiceCreateResponse{Invoice: inv})
	})

	c := newTestClient(t, srv)
	inv := types.Invoice{
		BindleVersion: "1.0.0",
		Bindle:        types.BindleSpec{Name: "example.com/foo", Version: "1.0.0"},
	}
	resp, err := c.CreateInvoice(context.Background(), inv)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if resp.Invoice.Bindle.Name != inv.Bindle.Name {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateAndGetParcel(t *testing.T) {
	data := []byte("hello world")
	var uploaded []byte

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			uploaded = body
		case http.MethodGet:
			w.Write(uploaded)
		}
	})

	c := newTestClient(t, srv)
	if err := c.CreateParcel(context.Background(), "example.com/foo/1.0.0", "deadbeef", data); err != nil {
		t.Fatalf("CreateParcel: %v", err)
	}

	got, err := c.GetParcel(context.Background(), "example.com/foo/1.0.0", "deadbeef")
	if err != nil {
		t.Fatalf("GetParcel: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("GetParcel = %q, want %q", got, data)
	}
}

func TestYankInvoice(t *testing.T) {
	called := false
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		called = true
	})

	c := newTestClient(t, srv)
	if err := c.YankInvoice(context.Background(), "example.com/foo/1.0.0"); err != nil {
		t.Fatalf("YankInvoice: %v", err)
	}
	if !called {
		t.Error("expected server to receive the yank request")
	}
}

func TestGetMissingParcels(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		want := "/_i/example.com/foo/1.0.0/missing"
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
		}
		toml.NewEncoder(w).Encode(types.MissingParcelsResponse{
			Missing: []types.Label{{SHA256: "abc", Name: "f"}},
		})
	})

	c := newTestClient(t, srv)
	resp, err := c.GetMissingParcels(context.Background(), "example.com/foo/1.0.0")
	if err != nil {
		t.Fatalf("GetMissingParcels: %v", err)
	}
	if len(resp.Missing) != 1 || resp.Missing[0].SHA256 != "abc" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestNewRejectsInvalidURL(t *testing.T) {
	if _, err := New("://not-a-url", nil); err == nil {
		t.Error("expected error for invalid base URL")
	}
}

func TestNewStripsTrailingSlash(t *testing.T) {
	c, err := New("http://example.com/", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := fmt.Sprint(c.baseURL); got != "http://example.com" {
		t.Errorf("baseURL = %q, want trailing slash stripped", got)
	}
}
