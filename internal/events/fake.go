package events

import "sync"

// Fake is an in-memory [Recorder] for testing. It captures all recorded
// events in the Events slice. Safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	Events []Event
}

// NewFake returns a ready-to-use [Fake] recorder.
func NewFake() *Fake {
	return &Fake{}
}

// Record appends the event to the Events slice.
func (f *Fake) Record(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, e)
}

// ByType returns recorded events of the given type.
func (f *Fake) ByType(eventType string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, e := range f.Events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
