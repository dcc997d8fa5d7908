// Package metadata implements the ordered multimap that carries gRPC
// header and trailer key/value pairs, as distinct from
// google.golang.org/grpc/metadata.MD, which is an unordered map and
// cannot preserve the duplicate-insertion-order guarantee the wire
// protocol relies on for repeated headers.
package metadata

import (
	"encoding/base64"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
	gmd "google.golang.org/grpc/metadata"
)

// BinarySuffix marks a header name as carrying base64-encoded binary data.
const BinarySuffix = "-bin"

// reserved names are framework-managed and may not be set by user code
// through Set/Append; collisions surface as an error from the caller.
var reserved = map[string]struct{}{
	":status":              {},
	"grpc-status":          {},
	"grpc-message":         {},
	"grpc-encoding":        {},
	"grpc-accept-encoding": {},
	"content-type":         {},
	"te":                   {},
	"user-agent":           {},
	":path":                {},
	":authority":           {},
}

// ErrReservedKey is returned when user code attempts to set a
// framework-managed header through the public API.
var ErrReservedKey = errors.New("metadata: key is reserved for framework use")

// pair is one key/value entry, kept in insertion order.
type pair struct {
	key   string
	value string
}

// MD is an ordered multimap from lowercase ASCII header name to value.
// The zero value is an empty, usable MD. MD is not safe for concurrent
// mutation; callers that need to share one across goroutines should Clone
// it first.
type MD struct {
	pairs []pair
}

// New builds an MD from a map, in a stable order (keys sorted, then
// values in slice order) -- a convenience constructor
// for call sites migrating away from map-shaped metadata. Prefer Append
// when insertion order must be controlled precisely.
func New(kv map[string][]string) MD {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var md MD
	for _, k := range keys {
		for _, v := range kv[k] {
			md.Append(k, v)
		}
	}
	return md
}

func normalizeKey(key string) string {
	return strings.ToLower(key)
}

// isBinary reports whether key is a "-bin" suffixed key requiring
// base64 encoding on the wire.
func isBinary(key string) bool {
	return strings.HasSuffix(key, BinarySuffix)
}

// Append adds a value for key, preserving any existing values for that
// key and their relative order. It returns ErrReservedKey if key names a
// framework-managed header.
func (md *MD) Append(key, value string) error {
	key = normalizeKey(key)
	if _, ok := reserved[key]; ok {
		return errors.Wrapf(ErrReservedKey, "key %q", key)
	}
	md.appendUnchecked(key, value)
	return nil
}

// appendUnchecked bypasses the reserved-key guard; used internally by the
// framework to populate framework-managed headers.
func (md *MD) appendUnchecked(key, value string) {
	key = normalizeKey(key)
	md.pairs = append(md.pairs, pair{key: key, value: value})
}

// Set replaces all values for key with a single value.
func (md *MD) Set(key, value string) error {
	key = normalizeKey(key)
	if _, ok := reserved[key]; ok {
		return errors.Wrapf(ErrReservedKey, "key %q", key)
	}
	md.setUnchecked(key, value)
	return nil
}

// SetReserved sets a framework-managed header, bypassing the reserved-key
// guard that Set enforces against user code. It exists so framework code
// in other packages (status's trailer encoding, the transport layer) can
// populate grpc-status/grpc-message and similar wire-level headers; user
// code should use Set/Append instead.
func (md *MD) SetReserved(key, value string) {
	md.setUnchecked(key, value)
}

func (md *MD) setUnchecked(key, value string) {
	key = normalizeKey(key)
	out := md.pairs[:0]
	for _, p := range md.pairs {
		if p.key != key {
			out = append(out, p)
		}
	}
	md.pairs = append(out, pair{key: key, value: value})
}

// Get returns all values for key, in insertion order. The returned slice
// is a copy and safe to retain.
func (md MD) Get(key string) []string {
	key = normalizeKey(key)
	var out []string
	for _, p := range md.pairs {
		if p.key == key {
			out = append(out, p.value)
		}
	}
	return out
}

// Keys returns the distinct keys present, in first-seen order.
func (md MD) Keys() []string {
	seen := make(map[string]struct{}, len(md.pairs))
	var keys []string
	for _, p := range md.pairs {
		if _, ok := seen[p.key]; ok {
			continue
		}
		seen[p.key] = struct{}{}
		keys = append(keys, p.key)
	}
	return keys
}

// Len reports the total number of key/value pairs, counting duplicates.
func (md MD) Len() int { return len(md.pairs) }

// Range calls fn for every pair in insertion order. Range stops early if
// fn returns false.
func (md MD) Range(fn func(key, value string) bool) {
	for _, p := range md.pairs {
		if !fn(p.key, p.value) {
			return
		}
	}
}

// Clone returns an independent copy of md.
func (md MD) Clone() MD {
	out := MD{pairs: make([]pair, len(md.pairs))}
	copy(out.pairs, md.pairs)
	return out
}

// Merge appends every pair of other onto md, in other's order.
func (md *MD) Merge(other MD) {
	md.pairs = append(md.pairs, other.pairs...)
}

// EncodeValue base64-encodes value if key is a "-bin" key; otherwise
// returns value unchanged. Used when writing a pair to an HTTP header.
func EncodeValue(key, value string) string {
	if isBinary(key) {
		return base64.StdEncoding.EncodeToString([]byte(value))
	}
	return value
}

// DecodeValue reverses EncodeValue.
func DecodeValue(key, value string) (string, error) {
	if !isBinary(key) {
		return value, nil
	}
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", errors.Wrapf(err, "decoding -bin value for key %q", key)
	}
	return string(b), nil
}

// ToHTTPHeader renders md as an http.Header, base64-encoding "-bin"
// values and preserving duplicate-key ordering within each key's slice
// (cross-key ordering is not representable in http.Header).
func (md MD) ToHTTPHeader() http.Header {
	h := make(http.Header, len(md.pairs))
	for _, p := range md.pairs {
		h.Add(p.key, EncodeValue(p.key, p.value))
	}
	return h
}

// FromHTTPHeader builds an MD from an http.Header, decoding "-bin"
// values. Reserved pseudo/framework headers are included unchecked since
// they originate from the transport, not user code.
func FromHTTPHeader(h http.Header) (MD, error) {
	var md MD
	for k, vs := range h {
		for _, v := range vs {
			dv, err := DecodeValue(strings.ToLower(k), v)
			if err != nil {
				return MD{}, err
			}
			md.appendUnchecked(k, dv)
		}
	}
	return md, nil
}

// ToGRPC converts md to google.golang.org/grpc/metadata.MD for
// interoperability with generated stubs and ecosystem interceptors that
// expect that shape. Order is not preserved across keys, only within
// each key's value slice, because gmd.MD is itself an unordered map.
func (md MD) ToGRPC() gmd.MD {
	out := gmd.MD{}
	md.Range(func(key, value string) bool {
		out[key] = append(out[key], value)
		return true
	})
	return out
}

// FromGRPC builds an MD from a google.golang.org/grpc/metadata.MD. Since
// gmd.MD has no ordering, the result orders keys by Go map iteration
// (unspecified, not alphabetical) and values in their slice order.
func FromGRPC(in gmd.MD) MD {
	var md MD
	for k, vs := range in {
		for _, v := range vs {
			md.appendUnchecked(k, v)
		}
	}
	return md
}
