package cache

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/deislabs/go-bindle/internal/testutil"
	"github.com/deislabs/go-bindle/provider"
	"github.com/deislabs/go-bindle/search"
	"github.com/deislabs/go-bindle/storage/file"
	"github.com/deislabs/go-bindle/types"
)

func newProviders(t *testing.T) (upstream, local *file.Provider) {
	t.Helper()
	up, err := file.New(testutil.TempDir(t), search.NewStrictEngine())
	if err != nil {
		t.Fatalf("New(upstream): %v", err)
	}
	loc, err := file.New(testutil.TempDir(t), search.NewStrictEngine())
	if err != nil {
		t.Fatalf("New(local): %v", err)
	}
	return up, loc
}

func scaffoldInvoice(name, version string, data []byte) types.Invoice {
	inv, _ := testutil.InvoiceWithParcel(name, version, "file.txt", data)
	return inv
}

func TestGetInvoiceFillsLocalOnMiss(t *testing.T) {
	ctx := context.Background()
	upstream, local := newProviders(t)
	c := New(upstream, local)

	inv := scaffoldInvoice("example.com/foo", "1.0.0", []byte("hello"))
	if _, _, err := upstream.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("seed upstream: %v", err)
	}

	got, err := c.GetInvoice(ctx, inv.Name())
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Bindle.Name != inv.Bindle.Name {
		t.Errorf("unexpected invoice: %+v", got)
	}
	if stats := c.Stats(); stats.InvoiceMisses != 1 {
		t.Errorf("expected 1 invoice miss, got %d", stats.InvoiceMisses)
	}

	if _, err := local.GetInvoice(ctx, inv.Name()); err != nil {
		t.Errorf("expected invoice to be filled into local, got %v", err)
	}

	// Second read should be a local hit.
	if _, err := c.GetInvoice(ctx, inv.Name()); err != nil {
		t.Fatalf("second GetInvoice: %v", err)
	}
	if stats := c.Stats(); stats.InvoiceHits != 1 {
		t.Errorf("expected 1 invoice hit on second read, got %d", stats.InvoiceHits)
	}
}

func TestGetInvoiceNotFoundPropagates(t *testing.T) {
	ctx := context.Background()
	upstream, local := newProviders(t)
	c := New(upstream, local)

	_, err := c.GetInvoice(ctx, "example.com/missing/1.0.0")
	if !provider.Is(err, provider.KindNotFound) {
		t.Errorf("expected KindNotFound, got %v", err)
	}
}

func TestCreateInvoiceWritesThroughAndMirrors(t *testing.T) {
	ctx := context.Background()
	upstream, local := newProviders(t)
	c := New(upstream, local)

	inv := scaffoldInvoice("example.com/foo", "1.0.0", []byte("hello"))
	if _, _, err := c.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if _, err := upstream.GetInvoice(ctx, inv.Name()); err != nil {
		t.Errorf("expected invoice stored upstream, got %v", err)
	}
	if _, err := local.GetInvoice(ctx, inv.Name()); err != nil {
		t.Errorf("expected invoice mirrored to local, got %v", err)
	}
}

func TestGetParcelFillsLocalOnMiss(t *testing.T) {
	ctx := context.Background()
	upstream, local := newProviders(t)
	c := New(upstream, local)

	data := []byte("hello world")
	inv := scaffoldInvoice("example.com/foo", "1.0.0", data)
	upstream.CreateInvoice(ctx, inv)
	sha := inv.Parcel[0].Label.SHA256
	if err := upstream.CreateParcel(ctx, inv.Name(), sha, bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("seed upstream parcel: %v", err)
	}

	rc, err := c.GetParcel(ctx, inv.Name(), sha)
	if err != nil {
		t.Fatalf("GetParcel: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, data) {
		t.Errorf("GetParcel returned %q, want %q", got, data)
	}

	exists, err := local.ParcelExists(ctx, inv.Name(), sha)
	if err != nil || !exists {
		t.Errorf("expected parcel filled into local after miss, exists=%v err=%v", exists, err)
	}
}

func TestParcelExistsChecksLocalThenUpstream(t *testing.T) {
	ctx := context.Background()
	upstream, local := newProviders(t)
	c := New(upstream, local)

	data := []byte("hello world")
	inv := scaffoldInvoice("example.com/foo", "1.0.0", data)
	upstream.CreateInvoice(ctx, inv)
	sha := inv.Parcel[0].Label.SHA256
	upstream.CreateParcel(ctx, inv.Name(), sha, bytes.NewReader(data), int64(len(data)))

	exists, err := c.ParcelExists(ctx, inv.Name(), sha)
	if err != nil || !exists {
		t.Errorf("expected ParcelExists via upstream fallback, exists=%v err=%v", exists, err)
	}
	if stats := c.Stats(); stats.ParcelMisses != 1 {
		t.Errorf("expected 1 parcel miss, got %d", stats.ParcelMisses)
	}
}
