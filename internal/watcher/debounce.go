package watcher

import (
	"sync"
	"time"
)

// Kind classifies a logical change to an identity.
type Kind string

const (
	KindCreated  Kind = "created"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
)

// Event is one logical change to an identity, emitted after raw events for
// that identity have settled.
type Event struct {
	Identity string `json:"identity"`
	Kind     Kind   `json:"kind"`
}

// debouncer coalesces bursts of raw filesystem events per identity. A logical
// save frequently produces several raw events (truncate, write, metadata
// update); all raw events for an identity arriving within the settle window
// collapse into a single Event, emitted once activity on that identity stops.
type debouncer struct {
	window time.Duration
	out    chan<- Event

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	stopped  bool
	done     chan struct{}
	inFlight sync.WaitGroup
}

type pendingEvent struct {
	kind  Kind
	timer *time.Timer
}

func newDebouncer(window time.Duration, out chan<- Event) *debouncer {
	return &debouncer{
		window:  window,
		out:     out,
		pending: make(map[string]*pendingEvent),
		done:    make(chan struct{}),
	}
}

// observe records a raw event and (re)starts the settle timer for its
// identity.
func (d *debouncer) observe(identity string, kind Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if p, ok := d.pending[identity]; ok {
		p.kind = mergeKinds(p.kind, kind)
		p.timer.Reset(d.window)
		return
	}

	p := &pendingEvent{kind: kind}
	p.timer = time.AfterFunc(d.window, func() {
		d.flush(identity)
	})
	d.pending[identity] = p
}

func (d *debouncer) flush(identity string) {
	d.mu.Lock()
	p, ok := d.pending[identity]
	if !ok || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, identity)
	d.inFlight.Add(1)
	d.mu.Unlock()
	defer d.inFlight.Done()

	select {
	case d.out <- Event{Identity: identity, Kind: p.kind}:
	case <-d.done:
	}
}

// stop cancels all pending timers and waits out any flush already past its
// pending check. No events are emitted after stop returns.
func (d *debouncer) stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for identity, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, identity)
	}
	close(d.done)
	d.mu.Unlock()

	d.inFlight.Wait()
}

// mergeKinds resolves two raw kinds for the same identity into one logical
// kind. Deletion supersedes earlier activity; a delete followed by a create
// within the window is a replace, reported as a modification.
func mergeKinds(old, next Kind) Kind {
	switch {
	case next == KindDeleted:
		return KindDeleted
	case old == KindCreated && next == KindModified:
		return KindCreated
	case old == KindDeleted && next == KindCreated:
		return KindModified
	default:
		return next
	}
}
