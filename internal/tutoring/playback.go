package tutoring

import (
	"sync"
	"time"
)

// Playback schedules outbound audio chunks back to back on a caller-supplied
// timeline, the way an audio device clock would.
type Playback struct {
	mu     sync.Mutex
	next   time.Duration
	queued int
}

// Schedule returns the start offset of a chunk of the given duration:
// max(next, now), after which next moves to the chunk's end.
func (p *Playback) Schedule(now, duration time.Duration) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.next
	if now > start {
		start = now
	}
	p.next = start + duration
	p.queued++

	return start
}

// Interrupt drops every queued chunk and resets scheduling. It returns how
// many chunks were dropped.
func (p *Playback) Interrupt() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	dropped := p.queued
	p.next = 0
	p.queued = 0
	return dropped
}

// Queued reports how many chunks were scheduled since the last interrupt.
func (p *Playback) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queued
}
