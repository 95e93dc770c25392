package id

import (
	"sync"
	"testing"
)

func TestNewTraceIDUnique(t *testing.T) {
	a := NewTraceID()
	b := NewTraceID()

	if a == b {
		t.Error("trace ids should be unique")
	}
	if isZero(a[:]) || isZero(b[:]) {
		t.Error("trace ids should never be zero")
	}
}

func TestNewSpanIDUnique(t *testing.T) {
	a := NewSpanID()
	b := NewSpanID()

	if a == b {
		t.Error("span ids should be unique")
	}
	if isZero(a[:]) || isZero(b[:]) {
		t.Error("span ids should never be zero")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	const n = 100

	var mu sync.Mutex
	seen := make(map[[TraceIDBytes]byte]bool, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tid := NewTraceID()
			mu.Lock()
			seen[tid] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d distinct trace ids, got %d", n, len(seen))
	}
}
