package uploader

import (
	"context"
	"sync"
)

// cancellationSet holds the abort handles of the network calls of one batch.
// Once closed it refuses new handles so calls started after a cancellation abort at once.
type cancellationSet struct {
	mu      sync.Mutex
	next    int
	handles map[int]context.CancelFunc
	closed  bool
}

func newCancellationSet() *cancellationSet {
	return &cancellationSet{handles: make(map[int]context.CancelFunc)}
}

// track derives a cancelable context for one call. release must be called when the
// call returns. ErrCancelled is returned when the set is already closed.
func (s *cancellationSet) track(parent context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, ErrCancelled
	}

	ctx, cancel := context.WithCancel(parent)
	id := s.next
	s.next++
	s.handles[id] = cancel

	release := func() {
		s.mu.Lock()
		delete(s.handles, id)
		s.mu.Unlock()
		cancel()
	}
	return ctx, release, nil
}

// close refuses new handles and returns the outstanding ones without calling them.
// It reports false when the set was already closed.
func (s *cancellationSet) close() ([]context.CancelFunc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false
	}
	s.closed = true

	handles := make([]context.CancelFunc, 0, len(s.handles))
	for id, cancel := range s.handles {
		handles = append(handles, cancel)
		delete(s.handles, id)
	}
	return handles, true
}

// len returns the number of outstanding handles
func (s *cancellationSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}
