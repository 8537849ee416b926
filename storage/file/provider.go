// Package file implements the Bindle Provider contract over a
// content-addressed directory tree on local disk (§4.3):
//
//	<root>/invoices/<canonical>/invoice.toml
//	<root>/invoices/<canonical>/parcel.dat/<sha256>
//
// All writes are scoped acquisitions: they land in a temporary sibling path
// and are atomically renamed into place on success, with temp files unlinked
// on any failure path. A per-canonical lock table serializes concurrent
// writes to the same aggregate.
package file

import (
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	bindlelog "github.com/deislabs/go-bindle/log"
	"github.com/deislabs/go-bindle/lock"
	"github.com/deislabs/go-bindle/search"
)

const (
	invoicesDir  = "invoices"
	invoiceFile  = "invoice.toml"
	parcelSubdir = "parcel.dat"

	// probeCacheSize bounds the in-memory parcel-existence probe cache, which
	// remembers parcels already found present so that re-checking them
	// skips os.Stat. Absent parcels are not cached.
	probeCacheSize = 4096
)

// Provider is the on-disk, content-addressed Bindle storage backend.
type Provider struct {
	root   string
	index  search.Engine
	locks  *lock.Table
	probe  *lru.Cache[string, bool]
	logger *logrus.Entry
}

// New returns a Provider rooted at root, creating the invoices directory if
// it does not already exist. index is updated transactionally with every
// invoice write; pass search.NoopEngine{} if no index is wired up.
func New(root string, index search.Engine) (*Provider, error) {
	if err := os.MkdirAll(filepath.Join(root, invoicesDir), 0700); err != nil {
		return nil, err
	}

	probe, err := lru.New[string, bool](probeCacheSize)
	if err != nil {
		return nil, err
	}

	return &Provider{
		root:   root,
		index:  index,
		locks:  lock.NewTable(),
		probe:  probe,
		logger: bindlelog.New("storage/file"),
	}, nil
}

func (p *Provider) invoiceDir(canonical string) string {
	return filepath.Join(p.root, invoicesDir, canonical)
}

func (p *Provider) invoicePath(canonical string) string {
	return filepath.Join(p.invoiceDir(canonical), invoiceFile)
}

func (p *Provider) parcelDir(canonical string) string {
	return filepath.Join(p.invoiceDir(canonical), parcelSubdir)
}

func (p *Provider) parcelPath(canonical, sha256 string) string {
	return filepath.Join(p.parcelDir(canonical), sha256)
}
