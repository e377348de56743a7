package auth

import "sync"

// MockStore is an in-memory CredentialStore for tests.
type MockStore struct {
	mu    sync.Mutex
	creds map[string]*Credentials

	StoreErr    error
	RetrieveErr error
	ListErr     error
	DeleteErr   error
}

// NewMockStore creates an empty in-memory store
func NewMockStore() *MockStore {
	return &MockStore{creds: make(map[string]*Credentials)}
}

func (m *MockStore) Store(creds *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StoreErr != nil {
		return m.StoreErr
	}
	if creds == nil || creds.Label == "" {
		return ErrInvalidCredentials
	}
	copied := *creds
	m.creds[creds.Label] = &copied
	return nil
}

func (m *MockStore) Retrieve(label string) (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RetrieveErr != nil {
		return nil, m.RetrieveErr
	}
	creds, ok := m.creds[label]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	copied := *creds
	return &copied, nil
}

func (m *MockStore) List() ([]*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]*Credentials, 0, len(m.creds))
	for _, creds := range m.creds {
		copied := *creds
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MockStore) Delete(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.creds[label]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, label)
	return nil
}

func (m *MockStore) Exists(label string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.creds[label]
	return ok
}
