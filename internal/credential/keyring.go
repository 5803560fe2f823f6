package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/mailpdf/internal/model"
)

const (
	serviceName = "mailpdf"

	// itemKey is the keyring entry holding the serialized token cache.
	itemKey = "token-cache"
)

// OpenKeyring returns a keyring for the service. fileDir is used by the
// encrypted file backend when no OS keychain is available.
func OpenKeyring(fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailpdf-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringStore keeps the credential as a single keyring item. Atomicity
// of the write is provided by the keyring backend.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore wraps an opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Load retrieves the credential. A missing item yields an empty credential.
func (s *KeyringStore) Load(_ context.Context) (*Credential, error) {
	item, err := s.ring.Get(itemKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return New(nil), nil
		}
		return New(nil), fmt.Errorf("getting credential %q: %w", itemKey, err)
	}
	return New(item.Data), nil
}

// Save stores the credential if it is dirty.
func (s *KeyringStore) Save(_ context.Context, c *Credential) error {
	data, dirty := c.snapshot()
	if !dirty {
		return nil
	}

	err := s.ring.Set(keyring.Item{
		Key:         itemKey,
		Data:        data,
		Label:       "mailpdf token cache",
		Description: "OAuth token cache for the mailbox poller",
	})
	if err != nil {
		return &model.PersistenceError{Op: "save credential", Path: "keyring:" + itemKey, Err: err}
	}

	c.markSaved(data)
	return nil
}
