package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const keychainAccount = "analyzer_api_key"

// Keychain persists the user-supplied key in the OS keychain for terminal clients.
type Keychain struct {
	service string
}

func NewKeychain(service string) *Keychain {
	if strings.TrimSpace(service) == "" {
		service = "symptomcheck"
	}
	return &Keychain{service: service}
}

// Get returns an empty key when nothing is stored.
func (k *Keychain) Get(context.Context) (string, error) {
	v, err := keyring.Get(k.service, keychainAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read keychain: %w", err)
	}
	return v, nil
}

func (k *Keychain) Set(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("empty key")
	}
	if err := keyring.Set(k.service, keychainAccount, key); err != nil {
		return fmt.Errorf("store keychain: %w", err)
	}
	return nil
}

func (k *Keychain) Delete(context.Context) error {
	err := keyring.Delete(k.service, keychainAccount)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete keychain: %w", err)
	}
	return nil
}

// Provider adapts the keychain to the resolver.
func (k *Keychain) Provider() Provider {
	return Stored("keychain", k.Get)
}
