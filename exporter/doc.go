// Package exporter carries closed spans out of the process.
//
// The tracer's obligation ends when it hands a span over; buffering,
// batching, retry, backoff and compression all live on this side of the
// boundary.
//
//	tracer ──Export──▶ Processor ──ExportBatch──▶ LogExporter / HTTPExporter
//
// The Processor is a bounded buffer with a single worker: when the buffer is
// full, spans are dropped and counted rather than blocking the request path.
package exporter
