// Package search defines the abstract invoice index contract that providers
// update transactionally with invoice writes (§4.4). The core depends only
// on this interface; the concrete index backend is an external collaborator.
package search

import (
	"context"
	"strings"
	"sync"

	"github.com/deislabs/go-bindle/id"
	"github.com/deislabs/go-bindle/semverutil"
	"github.com/deislabs/go-bindle/types"
)

// defaultLimit is used when a QueryOptions does not specify one.
const defaultLimit = 50

// QueryOptions controls a search query (§4.4).
type QueryOptions struct {
	Query   string
	Version string
	Offset  uint64
	Limit   uint
	Strict  bool
	Yanked  bool
}

// FromTypes converts a wire-format types.QueryOptions into a QueryOptions,
// applying this package's defaults for any unset field.
func FromTypes(q types.QueryOptions) QueryOptions {
	opts := QueryOptions{Limit: defaultLimit}
	if q.Query != nil {
		opts.Query = *q.Query
	}
	if q.Version != nil {
		opts.Version = *q.Version
	}
	if q.Offset != nil {
		opts.Offset = *q.Offset
	}
	if q.Limit != nil {
		opts.Limit = uint(*q.Limit)
	}
	if q.Strict != nil {
		opts.Strict = *q.Strict
	}
	if q.Yanked != nil {
		opts.Yanked = *q.Yanked
	}
	return opts
}

// Engine is the abstract contract a search index implements: insert/remove
// invoices and answer queries over name, version, and metadata.
type Engine interface {
	Index(ctx context.Context, inv types.Invoice) error
	Remove(ctx context.Context, id string) error
	Query(ctx context.Context, opts QueryOptions) (types.Matches, error)
}

// NoopEngine never indexes anything and always returns an empty result set.
// Useful for providers that don't need search, or for tests.
type NoopEngine struct{}

// Index discards inv.
func (NoopEngine) Index(context.Context, types.Invoice) error { return nil }

// Remove is a no-op.
func (NoopEngine) Remove(context.Context, string) error { return nil }

// Query always returns zero matches.
func (NoopEngine) Query(_ context.Context, opts QueryOptions) (types.Matches, error) {
	return types.Matches{
		Query:  opts.Query,
		Strict: opts.Strict,
		Offset: opts.Offset,
		Limit:  opts.Limit,
		Yanked: opts.Yanked,
	}, nil
}

// StrictEngine is a thread-safe, linear-scan, in-memory search index keyed
// by canonical name. It is "strict" in the sense that it implements the
// QueryOptions.Strict exact-name-match mode faithfully; it is not itself
// mandatory to use strict mode.
type StrictEngine struct {
	mu       sync.RWMutex
	invoices map[string]types.Invoice
}

// NewStrictEngine returns an empty StrictEngine.
func NewStrictEngine() *StrictEngine {
	return &StrictEngine{invoices: make(map[string]types.Invoice)}
}

// Index inserts or replaces inv, keyed by its canonical name.
func (s *StrictEngine) Index(_ context.Context, inv types.Invoice) error {
	canonical, err := inv.CanonicalName()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[canonical] = inv
	return nil
}

// Remove deletes the invoice identified by idStr (a "name/version" string)
// from the index, if present.
func (s *StrictEngine) Remove(_ context.Context, idStr string) error {
	parsed, err := id.Parse(idStr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invoices, parsed.Sha())
	return nil
}

// Query performs a linear scan over the index applying opts' filters, then
// paginates with Offset/Limit.
func (s *StrictEngine) Query(_ context.Context, opts QueryOptions) (types.Matches, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []types.Invoice
	for _, inv := range s.invoices {
		if !opts.Yanked && inv.IsYanked() {
			continue
		}
		if !matchesQuery(inv, opts) {
			continue
		}
		if !semverutil.VersionInRange(inv.Bindle.Version, opts.Version) {
			continue
		}
		all = append(all, inv)
	}

	total := uint64(len(all))
	start := opts.Offset
	if start > total {
		start = total
	}
	end := start + uint64(limit)
	if end > total {
		end = total
	}

	return types.Matches{
		Query:    opts.Query,
		Strict:   opts.Strict,
		Offset:   opts.Offset,
		Limit:    limit,
		Total:    total,
		More:     end < total,
		Yanked:   opts.Yanked,
		Invoices: all[start:end],
	}, nil
}

func matchesQuery(inv types.Invoice, opts QueryOptions) bool {
	if opts.Query == "" {
		return true
	}
	if opts.Strict {
		return inv.Bindle.Name == opts.Query
	}
	if strings.Contains(strings.ToLower(inv.Bindle.Name), strings.ToLower(opts.Query)) {
		return true
	}
	if inv.Bindle.Description != nil &&
		strings.Contains(strings.ToLower(*inv.Bindle.Description), strings.ToLower(opts.Query)) {
		return true
	}
	return false
}
