package propagation

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/traceweave/traceweave/internal/logging"
	"github.com/traceweave/traceweave/internal/monitoring"
	"github.com/traceweave/traceweave/trace"
)

// Wire format headers, W3C trace-context.
const (
	TraceparentHeader = "traceparent"
	TracestateHeader  = "tracestate"
)

const (
	// supportedVersion is the only traceparent version we emit.
	supportedVersion = "00"

	// traceparentLenV0 is the exact length of a version-00 traceparent.
	traceparentLenV0 = 55

	// tracestateMaxBytes caps the pass-through vendor state we accept.
	tracestateMaxBytes = 512

	// tracestateMaxMembers caps the list members we accept, per the W3C
	// recommendation.
	tracestateMaxMembers = 32
)

// Propagator encodes and decodes trace context against text-map carriers.
// Safe for concurrent use; construct once and share.
type Propagator struct {
	metrics *monitoring.Metrics
	limited *logging.Limited
}

// Option configures a Propagator.
type Option func(*Propagator)

// WithLogger sets the logger used for rate-limited carrier diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Propagator) {
		p.limited = logging.NewLimited(logger, 0.1, 1)
	}
}

// WithMetrics overrides the internal counters, used by tests.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(p *Propagator) {
		if m != nil {
			p.metrics = m
		}
	}
}

// New creates a W3C trace-context propagator.
func New(opts ...Option) *Propagator {
	p := &Propagator{
		metrics: monitoring.Default(),
		limited: logging.NewLimited(zap.NewNop(), 0.1, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fields lists the header keys the propagator reads and writes.
func (p *Propagator) Fields() []string {
	return []string{TraceparentHeader, TracestateHeader}
}

// Extract decodes the trace context from carrier. It never fails: a missing
// or malformed traceparent yields the zero (absent) context, counted but not
// reported to the caller. A malformed tracestate drops only the vendor state.
func (p *Propagator) Extract(carrier TextMapCarrier) trace.SpanContext {
	if carrier == nil {
		p.metrics.CarrierUnavailable.WithLabelValues("nil").Inc()
		p.limited.Warn("trace extraction against nil carrier")
		return trace.SpanContext{}
	}

	header := carrier.Get(TraceparentHeader)
	if header == "" {
		return trace.SpanContext{}
	}

	sc, ok := parseTraceparent(header)
	if !ok {
		p.metrics.ContextMalformed.WithLabelValues(TraceparentHeader).Inc()
		return trace.SpanContext{}
	}

	if state := carrier.Get(TracestateHeader); state != "" {
		entries, ok := parseTracestate(state)
		if !ok {
			p.metrics.ContextMalformed.WithLabelValues(TracestateHeader).Inc()
		} else {
			sc.State = trace.NewTraceState(entries...)
		}
	}

	sc.Remote = true
	return sc
}

// Inject encodes sc onto carrier. A pure write: nothing is read back, and an
// invalid context writes nothing.
func (p *Propagator) Inject(sc trace.SpanContext, carrier TextMapCarrier) {
	if carrier == nil {
		p.metrics.CarrierUnavailable.WithLabelValues("nil").Inc()
		p.limited.Warn("trace injection against nil carrier")
		return
	}
	if !sc.IsValid() {
		return
	}

	flags := "00"
	if sc.Sampled {
		flags = "01"
	}

	var b strings.Builder
	b.Grow(traceparentLenV0)
	b.WriteString(supportedVersion)
	b.WriteByte('-')
	b.WriteString(sc.TraceID.String())
	b.WriteByte('-')
	b.WriteString(sc.SpanID.String())
	b.WriteByte('-')
	b.WriteString(flags)
	carrier.Set(TraceparentHeader, b.String())

	if state := composeTracestate(sc.State); state != "" {
		carrier.Set(TracestateHeader, state)
	}
}

// parseTraceparent decodes `version-traceid-spanid-flags`. Version 00 must
// be exactly 55 bytes with exactly four fields; higher versions may append
// fields we ignore. Version ff is reserved and rejected.
func parseTraceparent(header string) (trace.SpanContext, bool) {
	header = strings.TrimSpace(header)
	if len(header) < traceparentLenV0 {
		return trace.SpanContext{}, false
	}

	parts := strings.SplitN(header, "-", 5)
	if len(parts) < 4 {
		return trace.SpanContext{}, false
	}

	version := parts[0]
	if len(version) != 2 || !isLowerHex(version) || version == "ff" {
		return trace.SpanContext{}, false
	}
	if version == supportedVersion && (len(header) != traceparentLenV0 || len(parts) != 4) {
		return trace.SpanContext{}, false
	}

	traceID, err := trace.ParseTraceID(parts[1])
	if err != nil || !traceID.IsValid() {
		return trace.SpanContext{}, false
	}

	spanID, err := trace.ParseSpanID(parts[2])
	if err != nil || !spanID.IsValid() {
		return trace.SpanContext{}, false
	}

	rawFlags := parts[3]
	if len(rawFlags) != 2 || !isLowerHex(rawFlags) {
		return trace.SpanContext{}, false
	}
	flags, err := strconv.ParseUint(rawFlags, 16, 8)
	if err != nil {
		return trace.SpanContext{}, false
	}

	return trace.SpanContext{
		TraceID: traceID,
		SpanID:  spanID,
		Sampled: flags&0x01 == 0x01,
	}, true
}

// parseTracestate splits a comma-separated key=value list, preserving member
// order. Oversized or structurally broken state is rejected as a whole;
// surplus members beyond the cap are discarded from the right, matching the
// W3C truncation rule.
func parseTracestate(header string) ([]trace.StateEntry, bool) {
	if len(header) > tracestateMaxBytes {
		return nil, false
	}

	var entries []trace.StateEntry
	for _, member := range strings.Split(header, ",") {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}
		key, value, found := strings.Cut(member, "=")
		if !found || key == "" || value == "" {
			return nil, false
		}
		if len(entries) >= tracestateMaxMembers {
			break
		}
		entries = append(entries, trace.StateEntry{Key: key, Value: value})
	}
	return entries, true
}

// composeTracestate renders vendor entries back to the wire, enforcing the
// same caps applied on extraction.
func composeTracestate(state trace.TraceState) string {
	entries := state.Entries()
	if len(entries) == 0 {
		return ""
	}
	if len(entries) > tracestateMaxMembers {
		entries = entries[:tracestateMaxMembers]
	}

	var b strings.Builder
	for _, e := range entries {
		member := e.Key + "=" + e.Value
		sep := 0
		if b.Len() > 0 {
			sep = 1
		}
		if b.Len()+sep+len(member) > tracestateMaxBytes {
			break
		}
		if sep == 1 {
			b.WriteByte(',')
		}
		b.WriteString(member)
	}
	return b.String()
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return len(s) > 0
}
