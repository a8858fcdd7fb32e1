// Package saruerr holds the sentinel errors and host-error taxonomy shared
// across the runtime core.
package saruerr

import (
	"errors"
	"fmt"
)

// HostError is a host ABI return code. Zero means success; the runtime never
// constructs a HostError for zero.
type HostError uint8

const (
	Generic           HostError = 1
	InvalidArgument   HostError = 2
	InvalidHandle     HostError = 3
	BufferLength      HostError = 4
	Unsupported       HostError = 5
	Alignment         HostError = 6
	HTTPParse         HostError = 7
	HTTPUser          HostError = 8
	HTTPIncomplete    HostError = 9
	None              HostError = 10
	HTTPHeadTooLarge  HostError = 11
	HTTPInvalidStatus HostError = 12
)

func (c HostError) String() string {
	switch c {
	case Generic:
		return "generic"
	case InvalidArgument:
		return "invalid argument"
	case InvalidHandle:
		return "invalid handle"
	case BufferLength:
		return "buffer length"
	case Unsupported:
		return "unsupported"
	case Alignment:
		return "alignment"
	case HTTPParse:
		return "http parse"
	case HTTPUser:
		return "http user"
	case HTTPIncomplete:
		return "http incomplete message"
	case None:
		return "none"
	case HTTPHeadTooLarge:
		return "http head too large"
	case HTTPInvalidStatus:
		return "http invalid status"
	default:
		return fmt.Sprintf("host error %d", uint8(c))
	}
}

// HostCallError wraps a failed host call with the function name and the
// numeric code it returned, matching the engine-exception shape the spec
// requires ("function name and numeric code").
type HostCallError struct {
	Func string
	Code HostError
}

func (e *HostCallError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Func, e.Code, e.Code)
}

// Code_ returns the numeric host code, so callers that recover a
// *HostCallError via errors.As can read it without string-matching.
func (e *HostCallError) Code_() HostError { return e.Code }

// NewHostCallError builds a HostCallError for a non-zero host return code.
func NewHostCallError(fn string, code HostError) error {
	return &HostCallError{Func: fn, Code: code}
}

// Sentinel errors for guest-visible validation and semantic failures. These
// are not host error codes; they are raised entirely within the runtime.
var (
	ErrBodyUsed               = errors.New("body already consumed")
	ErrBodyLocked             = errors.New("body stream locked or disturbed")
	ErrInvalidHeaderName      = errors.New("invalid header name")
	ErrInvalidHeaderValue     = errors.New("invalid header value")
	ErrInvalidCacheOverride   = errors.New("invalid cache override mode")
	ErrNoBackend              = errors.New("no backend specified")
	ErrRespondWithViolation   = errors.New("respondWith called outside dispatch or after first response")
	ErrReentrantScratchBuffer = errors.New("scratch buffer acquired re-entrantly")
)

// ErrNetwork is the error fetch() rejects with when the host's pending-request
// select returns an invalid response handle.
var ErrNetwork = errors.New("NetworkError when attempting to fetch resource.")

// IsNone reports whether err is (or wraps) the host's "None" code, the one
// code callers are expected to handle locally rather than propagate.
func IsNone(err error) bool {
	var hc *HostCallError
	if errors.As(err, &hc) {
		return hc.Code == None
	}
	return false
}
