package hub

import (
	"sync"

	"github.com/google/uuid"
)

const defaultSubscriberBuffer = 1024

// StreamOption configures a Stream at construction.
type StreamOption func(*streamOptions)

type streamOptions struct {
	buffer int
	replay bool
	onDrop func(stream string)
}

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) StreamOption {
	return func(o *streamOptions) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithReplay makes the stream retain its most recent value and deliver it to
// a new subscriber immediately on attach, before any subsequent live events.
// Only the single latest value is ever replayed, never a backlog.
func WithReplay() StreamOption {
	return func(o *streamOptions) { o.replay = true }
}

// WithDropHook installs a callback invoked whenever a delivery is shed
// because a subscriber's buffer is full.
func WithDropHook(fn func(stream string)) StreamOption {
	return func(o *streamOptions) { o.onDrop = fn }
}

// Stream is a named, multi-subscriber broadcast channel.
//
// Delivery to each subscriber is independent: every subscriber owns a
// buffered channel, and a publish that finds a subscriber's buffer full drops
// that one delivery instead of blocking the publisher or other subscribers.
type Stream[T any] struct {
	name string
	opts streamOptions

	mu      sync.Mutex
	subs    map[uuid.UUID]chan T
	last    T
	hasLast bool
	closed  bool
}

// NewStream creates a broadcast stream.
func NewStream[T any](name string, opts ...StreamOption) *Stream[T] {
	o := streamOptions{buffer: defaultSubscriberBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	return &Stream[T]{
		name: name,
		opts: o,
		subs: make(map[uuid.UUID]chan T),
	}
}

// Name returns the stream name.
func (s *Stream[T]) Name() string { return s.name }

// Publish broadcasts v to every current subscriber.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.opts.replay {
		s.last = v
		s.hasLast = true
	}

	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			if s.opts.onDrop != nil {
				s.opts.onDrop(s.name)
			}
		}
	}
}

// Subscribe attaches a new subscriber and returns its handle. On a replay
// stream the most recent value, if any, is already buffered on the channel
// when Subscribe returns.
func (s *Stream[T]) Subscribe() *Subscription[T] {
	ch := make(chan T, s.opts.buffer)
	id := uuid.New()

	s.mu.Lock()
	if s.closed {
		close(ch)
		s.mu.Unlock()
		return &Subscription[T]{C: ch}
	}
	if s.opts.replay && s.hasLast {
		ch <- s.last
	}
	s.subs[id] = ch
	s.mu.Unlock()

	return &Subscription[T]{
		C: ch,
		cancel: func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		},
	}
}

// SubscriberCount returns the number of attached subscribers.
func (s *Stream[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close closes the stream and every subscriber channel. Publish becomes a
// no-op afterwards.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Subscription is a handle to one stream attachment. Receive from C on
// whatever goroutine the consumer wants delivery marshalled onto; call
// Cancel to detach and release the channel.
type Subscription[T any] struct {
	C      <-chan T
	cancel func()
	once   sync.Once
}

// Cancel detaches the subscriber. The channel is closed; pending buffered
// values may still be drained.
func (s *Subscription[T]) Cancel() {
	if s.cancel != nil {
		s.once.Do(s.cancel)
	}
}
