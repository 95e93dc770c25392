// Package request builds the immutable attribute set a database or queue
// span is tagged with: connection endpoint, logical name and the sanitized
// operation.
package request

import (
	"github.com/traceweave/traceweave/sanitize"
)

// Unknown substitutes for endpoint fields the instrumentation could not
// discover. Best-effort observability never rejects a request over a
// missing hostname.
const Unknown = "unknown"

// Descriptor is an immutable value describing one instrumented request.
// Plain value equality; no identity beyond the fields.
type Descriptor struct {
	Host        string
	Port        int
	LogicalName string
	Operation   sanitize.Operation
}

// Build constructs a Descriptor, substituting Unknown for empty host or
// logical name. It cannot fail.
func Build(host string, port int, logicalName string, op sanitize.Operation) Descriptor {
	if host == "" {
		host = Unknown
	}
	if logicalName == "" {
		logicalName = Unknown
	}
	return Descriptor{
		Host:        host,
		Port:        port,
		LogicalName: logicalName,
		Operation:   op,
	}
}

// Attributes renders the descriptor as span attributes.
func (d Descriptor) Attributes() map[string]any {
	attrs := map[string]any{
		"net.peer.name": d.Host,
		"db.name":       d.LogicalName,
	}
	if d.Port > 0 {
		attrs["net.peer.port"] = d.Port
	}
	if d.Operation.Sanitized != "" {
		attrs["db.statement"] = d.Operation.Sanitized
	}
	if d.Operation.Summary != "" {
		attrs["db.operation"] = d.Operation.Summary
	}
	return attrs
}
