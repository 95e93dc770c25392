// Package trace is the span-correlation core: it creates spans, threads the
// active span through context.Context, resolves parent linkage across
// synchronous calls, goroutine handoffs and callbacks, and hands each span to
// an exporter exactly once when it ends.
//
// Parent resolution, in priority order:
//   - An explicit remote SpanContext (decoded from an inbound carrier)
//   - The ambient span carried by the context.Context
//   - Otherwise a new root span with a fresh trace id
//
// The ambient span is never inferred from the call stack: it travels
// explicitly inside the context, so a callback scheduled on one goroutine and
// executed on another stays attached to the right request as long as the
// context is passed along, which is the one rule instrumentation call sites
// must follow.
//
// Nothing in this package fails outward. Ending a span twice is a counted
// no-op, attribute writes on an ended span are counted and dropped, and a
// parent that ends while children are still open force-closes them first so a
// child is never reported after its parent.
package trace
