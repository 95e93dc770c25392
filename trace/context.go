package trace

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/traceweave/traceweave/internal/id"
)

// TraceID is a 128-bit trace identifier. The zero value means "absent": a
// context carrying it is treated as no context at all.
type TraceID [16]byte

// SpanID is a 64-bit span identifier. The zero value means "absent".
type SpanID [8]byte

var (
	// ErrInvalidID reports an id string of the wrong length or with
	// non-hex characters.
	ErrInvalidID = errors.New("trace: invalid id")
)

// NewTraceID returns a fresh random trace id.
func NewTraceID() TraceID {
	return TraceID(id.NewTraceID())
}

// NewSpanID returns a fresh random span id.
func NewSpanID() SpanID {
	return SpanID(id.NewSpanID())
}

// IsValid reports whether the trace id is non-zero.
func (t TraceID) IsValid() bool {
	return t != TraceID{}
}

// String renders the trace id as 32 lowercase hex digits.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// IsValid reports whether the span id is non-zero.
func (s SpanID) IsValid() bool {
	return s != SpanID{}
}

// String renders the span id as 16 lowercase hex digits.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// ParseTraceID decodes 32 lowercase hex digits into a TraceID.
func ParseTraceID(s string) (TraceID, error) {
	var t TraceID
	if len(s) != 32 || !isLowerHex(s) {
		return t, ErrInvalidID
	}
	if _, err := hex.Decode(t[:], []byte(s)); err != nil {
		return TraceID{}, ErrInvalidID
	}
	return t, nil
}

// ParseSpanID decodes 16 lowercase hex digits into a SpanID.
func ParseSpanID(s string) (SpanID, error) {
	var sp SpanID
	if len(s) != 16 || !isLowerHex(s) {
		return sp, ErrInvalidID
	}
	if _, err := hex.Decode(sp[:], []byte(s)); err != nil {
		return SpanID{}, ErrInvalidID
	}
	return sp, nil
}

// isLowerHex is the hand-rolled equivalent of ^[a-f0-9]+$; the wire format
// forbids uppercase digits.
func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return len(s) > 0
}

// StateEntry is one opaque vendor entry propagated alongside the trace
// context.
type StateEntry struct {
	Key   string
	Value string
}

// TraceState is an ordered list of opaque vendor entries, passed through
// extraction and injection verbatim. The zero value is an empty state.
type TraceState struct {
	entries []StateEntry
}

// NewTraceState builds a TraceState from entries, preserving order.
func NewTraceState(entries ...StateEntry) TraceState {
	if len(entries) == 0 {
		return TraceState{}
	}
	copied := make([]StateEntry, len(entries))
	copy(copied, entries)
	return TraceState{entries: copied}
}

// Len returns the number of vendor entries.
func (ts TraceState) Len() int {
	return len(ts.entries)
}

// Entries returns a copy of the vendor entries in order.
func (ts TraceState) Entries() []StateEntry {
	if len(ts.entries) == 0 {
		return nil
	}
	copied := make([]StateEntry, len(ts.entries))
	copy(copied, ts.entries)
	return copied
}

// Get returns the value for key, or "" if absent.
func (ts TraceState) Get(key string) string {
	for _, e := range ts.entries {
		if e.Key == key {
			return e.Value
		}
	}
	return ""
}

// String renders the state as a comma-separated key=value list.
func (ts TraceState) String() string {
	if len(ts.entries) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range ts.entries {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(e.Key)
		b.WriteByte('=')
		b.WriteString(e.Value)
	}
	return b.String()
}

// SpanContext is the minimal propagated identity of a span: trace id, span
// id, sampling decision and opaque vendor state. Immutable once constructed.
type SpanContext struct {
	TraceID TraceID
	SpanID  SpanID
	Sampled bool
	State   TraceState

	// Remote marks a context decoded from an inbound carrier rather than
	// created in-process.
	Remote bool
}

// IsValid reports whether the context carries a usable identity. An all-zero
// trace id means absent and starts a new root instead of linking.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

// Equal compares identity and vendor state, ignoring the Remote marker.
func (sc SpanContext) Equal(other SpanContext) bool {
	if sc.TraceID != other.TraceID || sc.SpanID != other.SpanID || sc.Sampled != other.Sampled {
		return false
	}
	if len(sc.State.entries) != len(other.State.entries) {
		return false
	}
	for i, e := range sc.State.entries {
		if other.State.entries[i] != e {
			return false
		}
	}
	return true
}
