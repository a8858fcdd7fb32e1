package localhost

import (
	"context"

	"github.com/eugener/saru/internal/saru"
	"github.com/eugener/saru/internal/saruerr"
)

// DictionaryOpen resolves name to a handle. The reference host doesn't
// validate existence here since a dictionary with zero seeded entries is
// legal; DictionaryGet is where a missing key surfaces as HostError None.
func (s *Session) DictionaryOpen(ctx context.Context, name string) (saru.Handle, error) {
	return s.dicts.new(name), nil
}

func (s *Session) DictionaryGet(ctx context.Context, h saru.Handle, key string) (string, error) {
	name, ok := s.dicts.get(h)
	if !ok {
		return "", errInvalidHandle("dictionary_get")
	}
	value, err := s.host.store.dictionaryGet(ctx, name, key)
	if err == errDictKeyNotFound {
		return "", saruerr.NewHostCallError("dictionary_get", saruerr.None)
	}
	if err != nil {
		return "", saruerr.NewHostCallError("dictionary_get", saruerr.Generic)
	}
	return value, nil
}
