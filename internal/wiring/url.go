package wiring

import "net/url"

// ParseURL delegates to the standard library's URL parser, per spec §1
// ("URL parsing (delegated to a URL library)"). It is kept as a thin wrapper
// so callers depend on this package, not net/url directly, in case a guest-
// visible quirk (e.g. URLSearchParams ordering) ever needs a shim here.
func ParseURL(raw string) (*url.URL, error) {
	return url.Parse(raw)
}

// URLSearchParams is a repeatable-key query string container. Append keeps
// insertion order; NewURLSearchParams groups parsed pairs by key in no
// defined key order, and String encodes pairs sorted by key.
type URLSearchParams struct {
	pairs []urlPair
}

type urlPair struct{ key, value string }

// NewURLSearchParams parses a query string (with or without a leading '?').
func NewURLSearchParams(raw string) (*URLSearchParams, error) {
	if len(raw) > 0 && raw[0] == '?' {
		raw = raw[1:]
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	p := &URLSearchParams{}
	for k, vs := range vals {
		for _, v := range vs {
			p.pairs = append(p.pairs, urlPair{k, v})
		}
	}
	return p, nil
}

// Append adds a key/value pair, preserving insertion order and duplicates.
func (p *URLSearchParams) Append(key, value string) {
	p.pairs = append(p.pairs, urlPair{key, value})
}

// Get returns the first value for key, if any.
func (p *URLSearchParams) Get(key string) (string, bool) {
	for _, kv := range p.pairs {
		if kv.key == key {
			return kv.value, true
		}
	}
	return "", false
}

// GetAll returns every value for key in insertion order.
func (p *URLSearchParams) GetAll(key string) []string {
	var out []string
	for _, kv := range p.pairs {
		if kv.key == key {
			out = append(out, kv.value)
		}
	}
	return out
}

// Delete removes every pair matching key.
func (p *URLSearchParams) Delete(key string) {
	out := p.pairs[:0]
	for _, kv := range p.pairs {
		if kv.key != key {
			out = append(out, kv)
		}
	}
	p.pairs = out
}

// String serializes back to a query string.
func (p *URLSearchParams) String() string {
	v := url.Values{}
	for _, kv := range p.pairs {
		v.Add(kv.key, kv.value)
	}
	return v.Encode()
}
