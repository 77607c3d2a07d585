// Package keychain stores bot credentials in the OS keychain.
package keychain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const service = "botline"

// Get returns the secret stored under name, or "" when there is none.
func Get(name string) (string, error) {
	secret, err := keyring.Get(service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keychain get %s: %w", name, err)
	}
	return secret, nil
}

// Set stores secret under name, replacing any previous value.
func Set(name string, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return errors.New("secret must not be empty")
	}
	if err := keyring.Set(service, name, secret); err != nil {
		return fmt.Errorf("keychain set %s: %w", name, err)
	}
	return nil
}

// Delete removes name. Deleting a missing entry is not an error.
func Delete(name string) error {
	err := keyring.Delete(service, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain delete %s: %w", name, err)
	}
	return nil
}
