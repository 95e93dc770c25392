// Package id provides centralized identifier generation for the tracing core.
//
// The wire format fixes identifier widths: trace ids are 128 bits, span ids
// are 64 bits, both rendered as lowercase hex. This package is the single
// source of both:
//   - Trace ids: random UUIDv4 bytes, guaranteed non-zero
//   - Span ids: crypto/rand, guaranteed non-zero
//
// Design Principles:
//   - One format: every id in the process comes from here
//   - Non-zero: an all-zero id means "absent" on the wire and is never issued
//   - Concurrency-safe: a process-wide generator shared across goroutines
package id

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/google/uuid"
)

// TraceIDBytes is the wire width of a trace id.
const TraceIDBytes = 16

// SpanIDBytes is the wire width of a span id.
const SpanIDBytes = 8

// NewTraceID returns a random non-zero 128-bit trace id.
func NewTraceID() [TraceIDBytes]byte {
	for {
		u := uuid.New()
		var out [TraceIDBytes]byte
		copy(out[:], u[:])
		if !isZero(out[:]) {
			return out
		}
	}
}

// NewSpanID returns a random non-zero 64-bit span id.
func NewSpanID() [SpanIDBytes]byte {
	var out [SpanIDBytes]byte
	for {
		if _, err := rand.Read(out[:]); err != nil {
			// crypto/rand never fails on supported platforms; fall back to
			// uuid-derived bytes rather than returning a zero id.
			u := uuid.New()
			binary.BigEndian.PutUint64(out[:], binary.BigEndian.Uint64(u[:8]))
		}
		if !isZero(out[:]) {
			return out
		}
	}
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
