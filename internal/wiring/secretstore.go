package wiring

import (
	"context"
	"fmt"

	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saru"
)

// SecretStoreHost is the host-call surface a secret store needs. It shares
// Dict's open/get shape exactly (supplemented feature: the original runtime
// exposes secrets through the same handle-table pattern as Dictionary).
type SecretStoreHost interface {
	DictionaryOpen(ctx context.Context, name string) (saru.Handle, error)
	DictionaryGet(ctx context.Context, h saru.Handle, key string) (string, error)
}

// SecretStore is a write-once-at-boot, read-many secret lookup. Unlike
// Dictionary its values are never cached in the clear for longer than one
// lookup's return — callers are expected to use a secret immediately, not
// hold it.
type SecretStore struct {
	name   string
	handle saru.Handle
	host   SecretStoreHost
}

var _ SecretStoreHost = hostabi.Host(nil)

// OpenSecretStore opens name via the host.
func OpenSecretStore(ctx context.Context, host SecretStoreHost, name string) (*SecretStore, error) {
	h, err := host.DictionaryOpen(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("secret store %q: open: %w", name, err)
	}
	return &SecretStore{name: name, handle: h, host: host}, nil
}

// Plaintext returns the secret's value for key. The host round trip is not
// cached, unlike Dictionary.Get.
func (s *SecretStore) Plaintext(ctx context.Context, key string) (string, error) {
	v, err := s.host.DictionaryGet(ctx, s.handle, key)
	if err != nil {
		return "", fmt.Errorf("secret store %q: get %q: %w", s.name, key, err)
	}
	return v, nil
}
