// Package headers implements the normalized, lazily-delazifying Headers
// container shared by Request and Response (spec §4.6).
package headers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/eugener/saru/internal/saruerr"
)

// Mode selects how a Headers instance is backed.
type Mode uint8

const (
	// Standalone holds values purely in memory; no host mirroring.
	Standalone Mode = iota
	// ProxyToRequest mirrors every mutation to a request handle's headers.
	ProxyToRequest
	// ProxyToResponse mirrors every mutation to a response handle's headers.
	ProxyToResponse
)

// HostProxy is the host-call surface Headers needs when mirroring to a
// request or response handle. internal/httpobj supplies implementations
// bound to a specific handle.
type HostProxy interface {
	NamesGet(ctx context.Context) ([]string, error)
	ValuesGet(ctx context.Context, name string) ([]string, error)
	Insert(ctx context.Context, name, value string) error
	Append(ctx context.Context, name, value string) error
	Remove(ctx context.Context, name string) error
}

// sentinel is the placeholder value for a lazily-unfetched entry.
const sentinel = "\x00lazy\x00"

// Headers is an ordered, case-insensitive multi-map with three modes and
// lazy delazification from host handles.
type Headers struct {
	mode  Mode
	proxy HostProxy
	lazy  bool

	keys   []string          // insertion order of lowercase names
	values map[string]string // lowercase name -> combined value (or sentinel)
}

// New constructs an empty Standalone Headers container.
func New() *Headers {
	return &Headers{mode: Standalone, values: map[string]string{}}
}

// NewProxy constructs a Headers container mirrored to proxy. lazy should be
// true only when proxying a downstream request or an upstream response
// (spec §4.6's create() rule); it populates keys from the host without
// fetching values until first access.
func NewProxy(ctx context.Context, mode Mode, proxy HostProxy, lazy bool) (*Headers, error) {
	h := &Headers{mode: mode, proxy: proxy, values: map[string]string{}, lazy: lazy}
	if lazy {
		names, err := proxy.NamesGet(ctx)
		if err != nil {
			return nil, fmt.Errorf("headers: names get: %w", err)
		}
		seen := map[string]struct{}{}
		for _, n := range names {
			ln := strings.ToLower(n)
			if _, ok := seen[ln]; ok {
				continue
			}
			seen[ln] = struct{}{}
			h.keys = append(h.keys, ln)
			h.values[ln] = sentinel
		}
	}
	return h, nil
}

// normalizeName validates and lowercases a header name: ASCII token chars
// only, non-empty.
func normalizeName(name string) (string, error) {
	if name == "" {
		return "", saruerr.ErrInvalidHeaderName
	}
	for i := 0; i < len(name); i++ {
		if !isTokenChar(name[i]) {
			return "", saruerr.ErrInvalidHeaderName
		}
	}
	return strings.ToLower(name), nil
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// normalizeValue trims CR/LF/TAB/SP from each end and rejects interior
// CR, LF, or NUL.
func normalizeValue(v string) (string, error) {
	v = strings.Trim(v, "\r\n\t ")
	if strings.ContainsAny(v, "\r\n\x00") {
		return "", saruerr.ErrInvalidHeaderValue
	}
	return v, nil
}

// ensureValue materializes the combined value for name if this container is
// lazy and the entry is still a sentinel.
func (h *Headers) ensureValue(ctx context.Context, name string) error {
	if !h.lazy {
		return nil
	}
	cur, ok := h.values[name]
	if !ok || cur != sentinel {
		return nil
	}
	vals, err := h.proxy.ValuesGet(ctx, name)
	if err != nil {
		return fmt.Errorf("headers: values get %q: %w", name, err)
	}
	h.values[name] = strings.Join(vals, ", ")
	return nil
}

// Get returns the combined value for name, delazifying it first if needed.
func (h *Headers) Get(ctx context.Context, name string) (string, bool, error) {
	ln, err := normalizeName(name)
	if err != nil {
		return "", false, err
	}
	if err := h.ensureValue(ctx, ln); err != nil {
		return "", false, err
	}
	v, ok := h.values[ln]
	return v, ok, nil
}

// Has reports whether name is present, delazifying it first if needed.
func (h *Headers) Has(ctx context.Context, name string) (bool, error) {
	_, ok, err := h.Get(ctx, name)
	return ok, err
}

// Append adds value to name's combined value (joined with ", "), mirroring
// to the host when not Standalone.
func (h *Headers) Append(ctx context.Context, name, value string) error {
	ln, err := normalizeName(name)
	if err != nil {
		return err
	}
	nv, err := normalizeValue(value)
	if err != nil {
		return err
	}
	if err := h.ensureValue(ctx, ln); err != nil {
		return err
	}
	if h.mode != Standalone {
		if err := h.proxy.Append(ctx, ln, nv); err != nil {
			return fmt.Errorf("headers: append: %w", err)
		}
	}
	if cur, ok := h.values[ln]; ok && cur != "" {
		h.values[ln] = cur + ", " + nv
	} else {
		h.values[ln] = nv
		if !ok {
			h.keys = append(h.keys, ln)
		}
	}
	return nil
}

// Set replaces name's combined value, mirroring to the host when not
// Standalone.
func (h *Headers) Set(ctx context.Context, name, value string) error {
	ln, err := normalizeName(name)
	if err != nil {
		return err
	}
	nv, err := normalizeValue(value)
	if err != nil {
		return err
	}
	if h.mode != Standalone {
		if err := h.proxy.Insert(ctx, ln, nv); err != nil {
			return fmt.Errorf("headers: set: %w", err)
		}
	}
	if _, ok := h.values[ln]; !ok {
		h.keys = append(h.keys, ln)
	}
	h.values[ln] = nv
	return nil
}

// Delete removes name, mirroring to the host when not Standalone.
func (h *Headers) Delete(ctx context.Context, name string) error {
	ln, err := normalizeName(name)
	if err != nil {
		return err
	}
	if h.mode != Standalone {
		if err := h.proxy.Remove(ctx, ln); err != nil {
			return fmt.Errorf("headers: delete: %w", err)
		}
	}
	if _, ok := h.values[ln]; ok {
		delete(h.values, ln)
		for i, k := range h.keys {
			if k == ln {
				h.keys = append(h.keys[:i], h.keys[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Delazify materializes every entry, then permanently clears the lazy flag.
func (h *Headers) Delazify(ctx context.Context) error {
	for _, k := range h.keys {
		if err := h.ensureValue(ctx, k); err != nil {
			return err
		}
	}
	h.lazy = false
	return nil
}

// Entry is one name/value pair in insertion order.
type Entry struct {
	Name  string
	Value string
}

// Entries delazifies then returns all entries in insertion order.
func (h *Headers) Entries(ctx context.Context) ([]Entry, error) {
	if err := h.Delazify(ctx); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(h.keys))
	for _, k := range h.keys {
		out = append(out, Entry{Name: k, Value: h.values[k]})
	}
	return out, nil
}

// Keys delazifies then returns the names sorted, for debugging
// and test assertions. Production iteration should prefer Entries.
func (h *Headers) Keys(ctx context.Context) ([]string, error) {
	if err := h.Delazify(ctx); err != nil {
		return nil, err
	}
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	sort.Strings(out)
	return out, nil
}
