package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/deislabs/go-bindle/id"
	"github.com/deislabs/go-bindle/provider"
)

// CreateParcel validates that data streams to exactly size bytes hashing to
// sha256, then stores it under canonical. Fails InvoiceNotFound if idStr
// names no stored invoice; fails DigestMismatch/SizeMismatch on content
// disagreement. Re-uploading an already-stored parcel is a no-op (§4.3).
func (p *Provider) CreateParcel(ctx context.Context, idStr string, sha256Hex string, data io.Reader, size int64) error {
	parsed, err := id.Parse(idStr)
	if err != nil {
		return provider.WithSubject(provider.KindInvalidID, idStr)
	}
	canonical := parsed.Sha()

	release := p.locks.Acquire(canonical)
	defer release()

	if _, err := os.Stat(p.invoicePath(canonical)); err != nil {
		if os.IsNotExist(err) {
			return provider.New(provider.KindInvoiceNotFound)
		}
		return provider.Wrap(provider.KindIO, err)
	}

	exists, err := p.parcelExists(canonical, sha256Hex)
	if err != nil {
		return err
	}
	if exists {
		// Idempotent no-op: still drain the body so the caller's connection
		// completes cleanly.
		_, _ = io.Copy(io.Discard, data)
		return nil
	}

	if err := os.MkdirAll(p.parcelDir(canonical), 0700); err != nil {
		return provider.Wrap(provider.KindIO, err)
	}

	tmpPath := filepath.Join(p.parcelDir(canonical), sha256Hex+"."+uuid.NewString()+".tmp")
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return provider.Wrap(provider.KindIO, err)
	}

	hasher := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(tmp, hasher), data)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return provider.Wrap(provider.KindIO, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return provider.Wrap(provider.KindIO, closeErr)
	}

	if written != size {
		os.Remove(tmpPath)
		return provider.WithSubject(provider.KindSizeMismatch, sha256Hex)
	}

	observed := hex.EncodeToString(hasher.Sum(nil))
	if observed != sha256Hex {
		os.Remove(tmpPath)
		return provider.WithSubject(provider.KindDigestMismatch, observed)
	}

	if err := os.Rename(tmpPath, p.parcelPath(canonical, sha256Hex)); err != nil {
		os.Remove(tmpPath)
		return provider.Wrap(provider.KindIO, err)
	}

	p.probe.Add(probeKey(canonical, sha256Hex), true)
	p.logger.WithField("canonical", canonical).WithField("sha256", sha256Hex).Info("stored parcel")
	return nil
}

// GetParcel streams back the stored bytes for sha256Hex within idStr.
func (p *Provider) GetParcel(ctx context.Context, idStr string, sha256Hex string) (io.ReadCloser, error) {
	parsed, err := id.Parse(idStr)
	if err != nil {
		return nil, provider.WithSubject(provider.KindInvalidID, idStr)
	}
	canonical := parsed.Sha()

	f, err := os.Open(p.parcelPath(canonical, sha256Hex))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, provider.New(provider.KindNotFound)
		}
		return nil, provider.Wrap(provider.KindIO, err)
	}
	return f, nil
}

// ParcelExists reports whether sha256Hex has been uploaded for idStr.
func (p *Provider) ParcelExists(ctx context.Context, idStr string, sha256Hex string) (bool, error) {
	parsed, err := id.Parse(idStr)
	if err != nil {
		return false, provider.WithSubject(provider.KindInvalidID, idStr)
	}
	return p.parcelExists(parsed.Sha(), sha256Hex)
}

func probeKey(canonical, sha256Hex string) string {
	return canonical + "/" + sha256Hex
}

func (p *Provider) parcelExists(canonical, sha256Hex string) (bool, error) {
	key := probeKey(canonical, sha256Hex)
	if exists, ok := p.probe.Get(key); ok && exists {
		return true, nil
	}

	_, err := os.Stat(p.parcelPath(canonical, sha256Hex))
	switch {
	case err == nil:
		p.probe.Add(key, true)
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, provider.Wrap(provider.KindIO, err)
	}
}
