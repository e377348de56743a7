package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It serves single-account setups that keep tokens in the environment
// instead of a file or keychain.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(label string) (*Credentials, error) {
	accessToken := os.Getenv("MEMBITNODE_ACCESS_TOKEN")
	csrf := os.Getenv("MEMBITNODE_CSRF")
	cookie := os.Getenv("MEMBITNODE_COOKIE")

	if accessToken == "" || csrf == "" || cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	// Environment variables carry no label, so any requested label matches
	if label == "" {
		label = "default"
	}

	return &Credentials{
		Label:        label,
		AccessToken:  accessToken,
		CSRF:         csrf,
		Cookie:       cookie,
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential set if environment variables are set
func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	return []*Credentials{creds}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(label string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(label string) bool {
	return os.Getenv("MEMBITNODE_ACCESS_TOKEN") != "" &&
		os.Getenv("MEMBITNODE_CSRF") != "" &&
		os.Getenv("MEMBITNODE_COOKIE") != ""
}
