package wiring

import (
	"github.com/eugener/saru/internal/hostabi"
	"github.com/eugener/saru/internal/saruerr"
)

// CacheOverrideMode is the guest-visible CacheOverride constructor mode.
type CacheOverrideMode string

const (
	CacheOverrideNone     CacheOverrideMode = "none"
	CacheOverridePassMode CacheOverrideMode = "pass"
	CacheOverrideOverride CacheOverrideMode = "override"
)

// CacheOverride models the guest's CacheOverride class: a mode plus the
// override-only fields, with the wire-tag encoding spec §6/§8 requires.
type CacheOverride struct {
	Mode         CacheOverrideMode
	TTLSeconds   uint32
	HasTTL       bool
	SWRSeconds   uint32
	HasSWR       bool
	SurrogateKey string
	PCI          bool
}

// NewCacheOverride validates that override-only fields are set only when
// mode is "override" (spec §6: "setting any of those on a non-override
// instance fails").
func NewCacheOverride(mode CacheOverrideMode, ttl, swr *uint32, surrogateKey string, pci bool) (*CacheOverride, error) {
	co := &CacheOverride{Mode: mode, SurrogateKey: surrogateKey, PCI: pci}
	if mode != CacheOverrideOverride {
		if ttl != nil || swr != nil || surrogateKey != "" || pci {
			return nil, saruerr.ErrInvalidCacheOverride
		}
		return co, nil
	}
	if ttl != nil {
		co.HasTTL = true
		co.TTLSeconds = *ttl
	}
	if swr != nil {
		co.HasSWR = true
		co.SWRSeconds = *swr
	}
	return co, nil
}

// Tag computes the bitwise-OR wire tag (spec §6/§8's testable property 9):
// override mode ORs TTL/SWR/PCI bits as present; pass sets bit 0 only; none
// is 0.
func (co *CacheOverride) Tag() hostabi.CacheOverrideTag {
	switch co.Mode {
	case CacheOverridePassMode:
		return hostabi.CacheOverridePass
	case CacheOverrideOverride:
		var tag hostabi.CacheOverrideTag
		if co.HasTTL {
			tag |= hostabi.CacheOverrideTTL
		}
		if co.HasSWR {
			tag |= hostabi.CacheOverrideSWR
		}
		if co.PCI {
			tag |= hostabi.CacheOverridePCI
		}
		return tag
	default:
		return 0
	}
}
