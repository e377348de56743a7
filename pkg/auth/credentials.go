package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Credentials holds one account's tokens under a user-chosen label.
type Credentials struct {
	Label        string    `json:"label"`
	AccessToken  string    `json:"access_token"`
	CSRF         string    `json:"csrf"`
	Cookie       string    `json:"cookie"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials under their label
	Store(creds *Credentials) error

	// Retrieve gets credentials for a specific label
	Retrieve(label string) (*Credentials, error)

	// List returns all stored credentials
	List() ([]*Credentials, error)

	// Delete removes credentials for a specific label
	Delete(label string) error

	// Exists checks if credentials exist for a label
	Exists(label string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Add environment store as last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves credentials using the first available store
func (m *Manager) Store(creds *Credentials) error {
	if creds.Label == "" {
		return errors.New("label is required")
	}
	if creds.AccessToken == "" {
		return errors.New("access token is required")
	}
	if creds.CSRF == "" {
		return errors.New("csrf token is required")
	}
	if creds.Cookie == "" {
		return errors.New("cookie is required")
	}

	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(creds); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(label string) (*Credentials, error) {
	for _, store := range m.stores {
		if creds, err := store.Retrieve(label); err == nil && creds != nil {
			return creds, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for label: %s", label)
}

// List returns all stored credentials from all stores
func (m *Manager) List() ([]*Credentials, error) {
	byLabel := make(map[string]*Credentials)

	for _, store := range m.stores {
		all, err := store.List()
		if err != nil {
			continue
		}
		for _, creds := range all {
			// Use the most recently modified version
			if existing, ok := byLabel[creds.Label]; !ok || creds.LastModified.After(existing.LastModified) {
				byLabel[creds.Label] = creds
			}
		}
	}

	result := make([]*Credentials, 0, len(byLabel))
	for _, creds := range byLabel {
		result = append(result, creds)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Label < result[j].Label })

	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(label string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(label); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for label: %s", label)
	}

	return nil
}

// ExportBlocks renders every stored credential set in the account file
// format the runner reads: blank-line-separated key=value blocks, ordered by
// label.
func (m *Manager) ExportBlocks() (string, error) {
	all, err := m.List()
	if err != nil {
		return "", err
	}
	if len(all) == 0 {
		return "", errors.New("no stored credentials to export")
	}

	var b strings.Builder
	for i, creds := range all {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "accessToken=%s\n", creds.AccessToken)
		fmt.Fprintf(&b, "csrf=%s\n", creds.CSRF)
		fmt.Fprintf(&b, "cookie=%s\n", creds.Cookie)
	}
	return b.String(), nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "membitnode")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "membitnode")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "membitnode")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "membitnode")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize creates a copy of the credentials with sensitive data masked
func Sanitize(creds *Credentials) *Credentials {
	if creds == nil {
		return nil
	}

	return &Credentials{
		Label:        creds.Label,
		AccessToken:  maskString(creds.AccessToken),
		CSRF:         maskString(creds.CSRF),
		Cookie:       maskString(creds.Cookie),
		LastModified: creds.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
