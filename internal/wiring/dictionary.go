// Package wiring implements the small guest-visible surfaces that sit
// beside the streaming core: URL, CacheOverride, Dictionary, TextEncoder/
// Decoder, Logger, Console, crypto.getRandomValues, and
// fastly.getGeolocationForIpAddress (spec §4's Wiring component).
package wiring

import (
	"context"
	"fmt"

	"github.com/maypok86/otter/v2"

	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saru"
	"github.com/eugener/saru/internal/saruerr"
)

// Dictionary is a read-only, host-backed key/value lookup. A real dictionary
// read is a host round trip, so repeated guest lookups of the same key are
// cached W-TinyLFU, the same shape as the teacher gateway's response cache.
type Dictionary struct {
	name   string
	handle saru.Handle
	host   hostabi.Dict
	cache  *otter.Cache[string, string]
}

// OpenDictionary opens name via the host and wraps it with a bounded lookup
// cache.
func OpenDictionary(ctx context.Context, host hostabi.Dict, name string, cacheSize int) (*Dictionary, error) {
	h, err := host.DictionaryOpen(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("dictionary %q: open: %w", name, err)
	}
	c, err := otter.New[string, string](&otter.Options[string, string]{MaximumSize: cacheSize})
	if err != nil {
		return nil, fmt.Errorf("dictionary %q: cache: %w", name, err)
	}
	return &Dictionary{name: name, handle: h, host: host, cache: c}, nil
}

// Get returns the value for key, or (_, false, nil) on a host "None" miss —
// the spec's one context-dependent error code (§6/§7: "Dictionary.get on
// missing key returns null; everywhere else it is an error").
func (d *Dictionary) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok := d.cache.GetIfPresent(key); ok {
		return v, true, nil
	}
	v, err := d.host.DictionaryGet(ctx, d.handle, key)
	if err != nil {
		if saruerr.IsNone(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("dictionary %q: get %q: %w", d.name, key, err)
	}
	d.cache.Set(key, v)
	return v, true, nil
}
