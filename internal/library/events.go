package library

import (
	"sync"
	"time"

	"booklib/internal/metrics"
)

// Code is the coarse reason of a change event.
type Code int

const (
	BookAdded Code = iota
	BookRemoved
	StatusChanged
	Found
	NotFound
)

var codeNames = [...]string{"book_added", "book_removed", "status_changed", "found", "not_found"}

func (c Code) String() string {
	if int(c) >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}

// MarshalText renders the code by name.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Event describes a change of the library.
type Event struct {
	Code    Code      `json:"code"`
	Status  Status    `json:"status"`
	Pattern string    `json:"pattern,omitempty"`
	Time    time.Time `json:"time"`
}

// subscriber owns an unbounded queue drained by its own goroutine, so a slow
// reader never blocks the library and never loses events.
type subscriber struct {
	mu     sync.Mutex
	queue  []Event
	signal chan struct{}
	out    chan Event
	done   chan struct{}
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		select {
		case <-s.signal:
		case <-s.done:
			return
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}

type bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

func newBus() *bus {
	return &bus{subs: make(map[int]*subscriber)}
}

func (b *bus) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}
	s := &subscriber{
		signal: make(chan struct{}, 1),
		out:    make(chan Event, buffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = s
	metrics.LibrarySubscribers.Set(float64(len(b.subs)))
	b.mu.Unlock()

	go s.run()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			_, ok := b.subs[id]
			delete(b.subs, id)
			metrics.LibrarySubscribers.Set(float64(len(b.subs)))
			b.mu.Unlock()
			if ok {
				close(s.done)
			}
		})
	}
	return s.out, cancel
}

func (b *bus) publish(ev Event) {
	metrics.LibraryEventsTotal.WithLabelValues(ev.Code.String()).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		s.push(ev)
	}
}

func (b *bus) close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[int]*subscriber)
	metrics.LibrarySubscribers.Set(0)
	b.mu.Unlock()

	for _, s := range subs {
		close(s.done)
	}
}
