package trace

import (
	"sync"
	"time"
)

// Kind classifies a span's role in a request.
type Kind int

const (
	KindInternal Kind = iota
	KindServer
	KindClient
	KindProducer
	KindConsumer
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindProducer:
		return "producer"
	case KindConsumer:
		return "consumer"
	default:
		return "internal"
	}
}

// Status is the outcome recorded on a span.
type Status int

const (
	StatusUnset Status = iota
	StatusOK
	StatusError
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Event is a timestamped annotation on an open span.
type Event struct {
	Time    time.Time
	Message string
	Fields  map[string]any
}

// Span is a timed unit of work. It is owned by the tracer from StartSpan
// until End, after which a read-only snapshot is handed to the exporter and
// further mutation is dropped.
type Span struct {
	tracer *Tracer

	mu       sync.Mutex
	name     string
	kind     Kind
	ctx      SpanContext
	parentID SpanID
	start    time.Time
	end      time.Time
	ended    bool
	status   Status
	message  string
	attrs    map[string]any
	events   []Event

	// Open-children bookkeeping, guarded separately so a child detaching
	// itself never contends with the parent's own field lock.
	childMu  sync.Mutex
	children []*Span
	parent   *Span

	// Closed once the span has been handed to the exporter. A parent whose
	// End races a child's End waits on this, so the child's report always
	// lands first.
	finished chan struct{}
}

// Context returns the span's propagated identity.
func (s *Span) Context() SpanContext {
	return s.ctx
}

// Name returns the operation name the span was started with.
func (s *Span) Name() string {
	return s.name
}

// Kind returns the span kind.
func (s *Span) Kind() Kind {
	return s.kind
}

// ParentSpanID returns the parent span id, zero for roots.
func (s *Span) ParentSpanID() SpanID {
	return s.parentID
}

// SetAttribute records a single attribute. Writes after End are dropped and
// counted, never applied.
func (s *Span) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		s.tracer.metrics.SpanAttrAfterEnd.Inc()
		return
	}
	if s.attrs == nil {
		s.attrs = make(map[string]any)
	}
	s.attrs[key] = value
}

// SetAttributes records several attributes at once.
func (s *Span) SetAttributes(attrs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		s.tracer.metrics.SpanAttrAfterEnd.Inc()
		return
	}
	if s.attrs == nil {
		s.attrs = make(map[string]any, len(attrs))
	}
	for k, v := range attrs {
		s.attrs[k] = v
	}
}

// AddEvent appends a timestamped annotation.
func (s *Span) AddEvent(message string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		s.tracer.metrics.SpanAttrAfterEnd.Inc()
		return
	}
	s.events = append(s.events, Event{Time: time.Now(), Message: message, Fields: fields})
}

// SetStatus records the span outcome. Later calls overwrite earlier ones
// until the span ends.
func (s *Span) SetStatus(status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		s.tracer.metrics.SpanAttrAfterEnd.Inc()
		return
	}
	s.status = status
	s.message = message
}

// RecordError marks the span failed and attaches the error as an event.
// A nil error is ignored.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		s.tracer.metrics.SpanAttrAfterEnd.Inc()
		return
	}
	s.status = StatusError
	s.message = err.Error()
	s.events = append(s.events, Event{Time: time.Now(), Message: "error", Fields: map[string]any{"error": err.Error()}})
}

// End closes the span and hands it to the exporter. Exactly the first call
// wins; later calls are counted no-ops. Children still open when their
// parent ends are force-closed with an error status first, so the exporter
// never sees a child after its parent.
func (s *Span) End() {
	s.endInternal(false)
}

func (s *Span) endInternal(forced bool) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		if !forced {
			s.tracer.metrics.SpanDoubleEnd.Inc()
		}
		return
	}
	s.ended = true
	s.end = time.Now()
	if forced {
		s.status = StatusError
		s.message = "abandoned: parent span ended first"
		s.tracer.metrics.SpanForcedEnd.Inc()
	}
	s.mu.Unlock()

	// Close any children still open before reporting this span. A child
	// whose own End won the race has already marked itself ended but may
	// not have reached the exporter yet; waiting on finished keeps its
	// report ahead of ours.
	s.childMu.Lock()
	open := s.children
	s.children = nil
	s.childMu.Unlock()
	for _, child := range open {
		child.endInternal(true)
		<-child.finished
	}

	s.tracer.finish(s)
	close(s.finished)

	// Detach from the parent only after exporting, so a parent ending
	// concurrently still finds us in its child list and waits.
	if s.parent != nil {
		s.parent.removeChild(s)
	}
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Span) addChild(child *Span) {
	s.childMu.Lock()
	s.children = append(s.children, child)
	s.childMu.Unlock()
}

func (s *Span) removeChild(child *Span) {
	s.childMu.Lock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			break
		}
	}
	s.childMu.Unlock()
}

// snapshot copies the span into an immutable SpanData for export.
func (s *Span) snapshot() SpanData {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs := make(map[string]any, len(s.attrs))
	for k, v := range s.attrs {
		attrs[k] = v
	}
	events := make([]Event, len(s.events))
	copy(events, s.events)

	return SpanData{
		Name:          s.name,
		Kind:          s.kind,
		Context:       s.ctx,
		ParentSpanID:  s.parentID,
		Service:       s.tracer.service,
		Start:         s.start,
		End:           s.end,
		Status:        s.status,
		StatusMessage: s.message,
		Attributes:    attrs,
		Events:        events,
	}
}

// SpanData is the immutable export form of a closed span.
type SpanData struct {
	Name          string
	Kind          Kind
	Context       SpanContext
	ParentSpanID  SpanID
	Service       string
	Start         time.Time
	End           time.Time
	Status        Status
	StatusMessage string
	Attributes    map[string]any
	Events        []Event
}

// Duration returns the span's wall-clock duration.
func (d SpanData) Duration() time.Duration {
	return d.End.Sub(d.Start)
}
