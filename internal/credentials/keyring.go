package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned by a Keyring when no secret is stored for the account.
var ErrNotFound = errors.New("credential not found")

// ErrKeyringNotAvailable is returned when the OS keyring cannot be reached,
// e.g. on a headless machine without a Secret Service.
var ErrKeyringNotAvailable = errors.New("system keyring not available")

// MockKeyring keeps secrets in memory. Tests use it in place of the OS
// keyring.
type MockKeyring struct {
	mu      sync.RWMutex
	secrets map[mockKey]string
}

type mockKey struct{ service, account string }

func NewMockKeyring() *MockKeyring {
	return &MockKeyring{secrets: make(map[mockKey]string)}
}

func (m *MockKeyring) Set(service, account, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secrets == nil {
		m.secrets = make(map[mockKey]string)
	}
	m.secrets[mockKey{service, account}] = password
	return nil
}

func (m *MockKeyring) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	secret, ok := m.secrets[mockKey{service, account}]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
	}
	return secret, nil
}

func (m *MockKeyring) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := mockKey{service, account}
	if _, ok := m.secrets[key]; !ok {
		return fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
	}
	delete(m.secrets, key)
	return nil
}

// systemKeyring stores secrets in the OS keyring through go-keyring
type systemKeyring struct{}

func (s *systemKeyring) Set(service, account, password string) error {
	return wrapKeyringError(keyring.Set(service, account, password), service, account)
}

func (s *systemKeyring) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		return "", wrapKeyringError(err, service, account)
	}
	return secret, nil
}

func (s *systemKeyring) Delete(service, account string) error {
	return wrapKeyringError(keyring.Delete(service, account), service, account)
}

// wrapKeyringError maps go-keyring errors onto the package sentinels.
func wrapKeyringError(err error, service, account string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
	case errors.Is(err, keyring.ErrUnsupportedPlatform):
		return ErrKeyringNotAvailable
	default:
		// go-keyring reports a missing D-Bus session as a plain error
		return fmt.Errorf("%w: %v", ErrKeyringNotAvailable, err)
	}
}
