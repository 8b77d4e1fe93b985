package pulse

import "sync"

// DefaultResonanceSize is how many recent reinforcement events recall keeps.
const DefaultResonanceSize = 5

// ResonanceBuffer holds the most recent reinforcement events so recall can
// surface what the session keeps coming back to. Oldest events fall off.
type ResonanceBuffer struct {
	mu     sync.Mutex
	events []Event
	size   int
}

// NewResonanceBuffer creates a buffer holding at most size events.
// A non-positive size uses DefaultResonanceSize.
func NewResonanceBuffer(size int) *ResonanceBuffer {
	if size <= 0 {
		size = DefaultResonanceSize
	}
	return &ResonanceBuffer{size: size}
}

// Absorb appends an event, evicting the oldest when full.
func (b *ResonanceBuffer) Absorb(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)
	if len(b.events) > b.size {
		b.events = b.events[len(b.events)-b.size:]
	}
}

// Recent returns the buffered events, oldest first.
func (b *ResonanceBuffer) Recent() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Len reports the number of buffered events.
func (b *ResonanceBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
