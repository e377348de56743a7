package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "membitnode"
	keyringPrefix  = "account_"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store
func NewKeyringStore() (*KeyringStore, error) {
	// Test if keyring is available
	testKey := "test_availability"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(creds *Credentials) error {
	if creds == nil || creds.Label == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	key := keyringPrefix + creds.Label
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return nil
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(label string) (*Credentials, error) {
	if label == "" {
		return nil, ErrInvalidCredentials
	}

	key := keyringPrefix + label
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return &creds, nil
}

// List returns all stored credentials from the keychain. The underlying
// keyring APIs cannot enumerate keys, so this store lists nothing and the
// encrypted file store provides enumeration instead.
func (k *KeyringStore) List() ([]*Credentials, error) {
	return []*Credentials{}, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(label string) error {
	if label == "" {
		return ErrInvalidCredentials
	}

	key := keyringPrefix + label
	err := keyring.Delete(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return nil
}

// Exists checks if credentials exist in the keychain
func (k *KeyringStore) Exists(label string) bool {
	if label == "" {
		return false
	}

	_, err := keyring.Get(keyringService, keyringPrefix+label)
	return err == nil
}
