package chess

import (
	"sync"
	"time"
)

const DefaultOpponentDelay = 500 * time.Millisecond

// Stopper is the part of *time.Timer the pacer needs.
type Stopper interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Stopper

func timeAfterFunc(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

// Pacer delays the opponent reply. At most one task is pending; scheduling again replaces it.
// The task receives the generation it was scheduled for and must compare it to the live one.
type Pacer struct {
	delay time.Duration
	after AfterFunc

	mu      sync.Mutex
	pending Stopper
	token   uint64
}

func NewPacer(delay time.Duration, after AfterFunc) *Pacer {
	if delay < 0 {
		delay = 0
	}
	if after == nil {
		after = timeAfterFunc
	}
	return &Pacer{delay: delay, after: after}
}

func (p *Pacer) Delay() time.Duration { return p.delay }

func (p *Pacer) Schedule(generation uint64, task func(generation uint64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		p.pending.Stop()
	}
	p.token++
	token := p.token
	p.pending = p.after(p.delay, func() {
		p.mu.Lock()
		if p.token != token {
			p.mu.Unlock()
			return
		}
		p.pending = nil
		p.mu.Unlock()
		task(generation)
	})
}

// Cancel drops the pending task, if any. A callback already running is not interrupted.
func (p *Pacer) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
	p.token++
}

func (p *Pacer) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}
