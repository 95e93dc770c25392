// Package propagation moves trace context across process boundaries.
//
// A carrier is a key-value view over some transport's metadata, HTTP headers
// being the canonical case. The core never learns the transport type: each
// transport implements TextMapCarrier once at the boundary and the codec
// works against the interface.
//
// One wire format is supported, W3C trace-context version 00: a traceparent
// header carrying version, 128-bit trace id, 64-bit span id and a flags byte,
// plus an opaque tracestate header passed through verbatim. Extraction is
// forgiving by policy: a malformed header yields the absent context and a
// counter increment, never an error, because propagation failure must not
// abort request processing.
package propagation
