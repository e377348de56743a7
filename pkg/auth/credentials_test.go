package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreds(label string) *Credentials {
	return &Credentials{
		Label:       label,
		AccessToken: "access-token-" + label,
		CSRF:        "csrf-token-" + label,
		Cookie:      "auth_token=cookie-" + label,
	}
}

func TestManagerStoreValidation(t *testing.T) {
	m := &Manager{stores: []CredentialStore{NewMockStore()}}

	tests := []struct {
		name   string
		mutate func(*Credentials)
	}{
		{"missing label", func(c *Credentials) { c.Label = "" }},
		{"missing access token", func(c *Credentials) { c.AccessToken = "" }},
		{"missing csrf", func(c *Credentials) { c.CSRF = "" }},
		{"missing cookie", func(c *Credentials) { c.Cookie = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := validCreds("main")
			tt.mutate(creds)
			assert.Error(t, m.Store(creds))
		})
	}
}

func TestManagerStoreFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreErr = ErrStoreUnavailable
	working := NewMockStore()
	m := &Manager{stores: []CredentialStore{broken, working}}

	require.NoError(t, m.Store(validCreds("main")))
	assert.True(t, working.Exists("main"))
}

func TestManagerRetrieveChecksStoresInOrder(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	require.NoError(t, second.Store(validCreds("backup")))
	m := &Manager{stores: []CredentialStore{first, second}}

	creds, err := m.Retrieve("backup")
	require.NoError(t, err)
	assert.Equal(t, "access-token-backup", creds.AccessToken)

	_, err = m.Retrieve("missing")
	assert.Error(t, err)
}

func TestManagerListPrefersNewestVersion(t *testing.T) {
	older := validCreds("main")
	older.AccessToken = "stale-token"
	older.LastModified = time.Now().Add(-time.Hour)

	newer := validCreds("main")
	newer.LastModified = time.Now()

	first := NewMockStore()
	require.NoError(t, first.Store(older))
	second := NewMockStore()
	require.NoError(t, second.Store(newer))

	m := &Manager{stores: []CredentialStore{first, second}}
	all, err := m.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "access-token-main", all[0].AccessToken)
}

func TestManagerDelete(t *testing.T) {
	store := NewMockStore()
	require.NoError(t, store.Store(validCreds("main")))
	m := &Manager{stores: []CredentialStore{store}}

	require.NoError(t, m.Delete("main"))
	assert.False(t, store.Exists("main"))
	assert.Error(t, m.Delete("main"))
}

func TestManagerExportBlocks(t *testing.T) {
	store := NewMockStore()
	require.NoError(t, store.Store(validCreds("alpha")))
	require.NoError(t, store.Store(validCreds("beta")))
	m := &Manager{stores: []CredentialStore{store}}

	blocks, err := m.ExportBlocks()
	require.NoError(t, err)

	want := "accessToken=access-token-alpha\n" +
		"csrf=csrf-token-alpha\n" +
		"cookie=auth_token=cookie-alpha\n" +
		"\n" +
		"accessToken=access-token-beta\n" +
		"csrf=csrf-token-beta\n" +
		"cookie=auth_token=cookie-beta\n"
	assert.Equal(t, want, blocks)
}

func TestManagerExportBlocksEmpty(t *testing.T) {
	m := &Manager{stores: []CredentialStore{NewMockStore()}}
	_, err := m.ExportBlocks()
	assert.Error(t, err)
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("MEMBITNODE_PASSPHRASE", "test-passphrase")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(validCreds("main")))
	require.True(t, store.Exists("main"))

	// A second store instance with the same passphrase reads it back
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	creds, err := reopened.Retrieve("main")
	require.NoError(t, err)
	assert.Equal(t, "access-token-main", creds.AccessToken)
	assert.Equal(t, "csrf-token-main", creds.CSRF)
	assert.Equal(t, "auth_token=cookie-main", creds.Cookie)

	all, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, reopened.Delete("main"))
	_, err = reopened.Retrieve("main")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv("MEMBITNODE_PASSPHRASE", "correct")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(validCreds("main")))

	t.Setenv("MEMBITNODE_PASSPHRASE", "wrong")
	intruder, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = intruder.Retrieve("main")
	assert.Error(t, err)
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	t.Setenv("MEMBITNODE_ACCESS_TOKEN", "env-token")
	t.Setenv("MEMBITNODE_CSRF", "env-csrf")
	t.Setenv("MEMBITNODE_COOKIE", "env-cookie")

	creds, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "default", creds.Label)
	assert.Equal(t, "env-token", creds.AccessToken)

	assert.True(t, store.Exists("anything"))
	assert.ErrorIs(t, store.Store(creds), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("default"), ErrStoreUnavailable)
}

func TestSanitize(t *testing.T) {
	creds := &Credentials{
		Label:       "main",
		AccessToken: "0123456789abcdef",
		CSRF:        "short",
		Cookie:      "auth_token=abcdefghijklmnop",
	}

	masked := Sanitize(creds)
	assert.Equal(t, "main", masked.Label)
	assert.Equal(t, "0123...cdef", masked.AccessToken)
	assert.Equal(t, "********", masked.CSRF)
	assert.NotContains(t, masked.Cookie, "ghijklm")

	assert.Nil(t, Sanitize(nil))
}
