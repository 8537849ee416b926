// Package keyring manages the local collection of trusted Ed25519 public
// keys used by Invoice.Verify, and the signing keypairs used by Invoice.Sign.
package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/deislabs/go-bindle/types"
	"github.com/pelletier/go-toml"
)

// Entry is one trusted key on a local keyring: a human label, the roles it
// is trusted to sign in, and its base64-encoded Ed25519 public key.
type Entry struct {
	Label string                `toml:"label"`
	Roles []types.SignatureRole `toml:"roles,omitempty"`
	Key   string                `toml:"key"`
}

// Keyring is the on-disk collection of trusted public keys.
type Keyring struct {
	Version string  `toml:"version"`
	Key     []Entry `toml:"key"`
}

// PublicKeys decodes every entry's base64 key into an ed25519.PublicKey,
// skipping (not failing on) any entry that fails to decode -- a corrupt
// keyring entry should not make every other trusted key unusable.
func (k Keyring) PublicKeys() []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, 0, len(k.Key))
	for _, e := range k.Key {
		raw, err := base64.StdEncoding.DecodeString(e.Key)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			continue
		}
		keys = append(keys, ed25519.PublicKey(raw))
	}
	return keys
}

// GenerateSignatureKey generates a new Ed25519 keypair for signing Bindle
// invoices as the given label in the given role. Returns a keyring Entry
// wrapping the public half, and the raw private key.
func GenerateSignatureKey(label string, role types.SignatureRole) (*Entry, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	entry := &Entry{
		Label: label,
		Roles: []types.SignatureRole{role},
		Key:   base64.StdEncoding.EncodeToString(pub),
	}

	return entry, priv, nil
}

// LocalKeyring returns the keyring stored on your local machine.
func LocalKeyring() (*Keyring, error) {
	path := keyringFilepath()

	keyringBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	kr := &Keyring{}
	if err := toml.Unmarshal(keyringBytes, kr); err != nil {
		return nil, err
	}

	return kr, nil
}

// AddLocalKey adds a new key to your local keyring file.
func AddLocalKey(entry *Entry) error {
	kr, err := LocalKeyring()
	if err != nil {
		// nothing to be done, create a new one
		kr = &Keyring{
			Version: "1.0.0",
			Key:     []Entry{},
		}
	}

	kr.Key = append(kr.Key, *entry)

	keyringBytes, err := toml.Marshal(kr)
	if err != nil {
		return err
	}

	path := keyringFilepath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// overwrite the file if it exists
	if err := os.WriteFile(path, keyringBytes, 0600); err != nil {
		return err
	}

	return nil
}

// WritePrivateKey writes a private key (encoded to base64) to the provided filepath
func WritePrivateKey(priv ed25519.PrivateKey, path string) error {
	keyString := base64.StdEncoding.EncodeToString(priv)

	if err := os.WriteFile(path, []byte(keyString), 0600); err != nil {
		return err
	}

	return nil
}

// ReadPrivateKey reads a private key from a file and returns it.
func ReadPrivateKey(path string) (ed25519.PrivateKey, error) {
	keyBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(string(keyBytes))
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key at %s is not a valid ed25519 private key", path)
	}

	return ed25519.PrivateKey(raw), nil
}

func keyringFilepath() string {
	base := filepath.Join("$HOME", ".bindle")

	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".bindle")
	}

	if config, err := os.UserConfigDir(); err == nil {
		base = filepath.Join(config, "bindle")
	}

	return filepath.Join(base, "keyring.toml")
}
