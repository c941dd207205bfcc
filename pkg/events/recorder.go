package events

import (
	"context"
	"sync"
)

// Recorder is an in-memory Sink that keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Post(ctx context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events in arrival order
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of the given kind
func (r *Recorder) OfKind(kind string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
