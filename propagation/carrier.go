package propagation

import "net/http"

// TextMapCarrier is the capability contract between the codec and a
// transport's metadata. Implement it once per transport; the codec never
// branches on the concrete type.
//
// Get returns "" for a missing key, never an error. Set overwrites: the last
// write for a key wins. Keys enumerates whatever is present, empty if none.
type TextMapCarrier interface {
	Get(key string) string
	Set(key, value string)
	Keys() []string
}

// MapCarrier adapts a plain map, useful for tests and for transports whose
// metadata is already a string map (message brokers, job queues).
type MapCarrier map[string]string

var _ TextMapCarrier = MapCarrier{}

// Get returns the value for key, or "" if absent.
func (c MapCarrier) Get(key string) string {
	return c[key]
}

// Set stores value under key, overwriting any previous value.
func (c MapCarrier) Set(key, value string) {
	c[key] = value
}

// Keys lists the keys present in the map.
func (c MapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// HeaderCarrier adapts http.Header. Lookups go through the canonical-form
// logic of net/http, so header-name case never matters.
type HeaderCarrier http.Header

var _ TextMapCarrier = HeaderCarrier{}

// Get returns the first value for key, or "" if absent.
func (c HeaderCarrier) Get(key string) string {
	return http.Header(c).Get(key)
}

// Set replaces any existing values for key.
func (c HeaderCarrier) Set(key, value string) {
	http.Header(c).Set(key, value)
}

// Keys lists the header names present.
func (c HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
