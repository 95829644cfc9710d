// Package history keeps the most recent forwarded states in memory for
// followers and diagnostics. Only a fixed number of states are retained;
// the oldest is evicted first.
package history

import (
	"context"
	"sync"

	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 256

// Store is a ring buffer of joint states. Readers always receive copies.
type Store struct {
	mu      sync.Mutex
	buf     []domain.JointState
	start   int
	size    int
	total   uint64
	updated chan struct{}
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		buf:     make([]domain.JointState, capacity),
		updated: make(chan struct{}),
	}
}

func (s *Store) Name() string { return "history" }

// WriteBatch appends states in order, evicting the oldest when full.
func (s *Store) WriteBatch(states []*domain.JointState) error {
	if len(states) == 0 {
		return nil
	}
	s.mu.Lock()
	for _, st := range states {
		if st == nil {
			continue
		}
		s.pushLocked(*st)
	}
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()
	return nil
}

func (s *Store) pushLocked(st domain.JointState) {
	capacity := len(s.buf)
	if s.size < capacity {
		s.buf[(s.start+s.size)%capacity] = st
		s.size++
	} else {
		s.buf[s.start] = st
		s.start = (s.start + 1) % capacity
	}
	s.total++
}

// Latest returns a copy of the newest state.
func (s *Store) Latest() (domain.JointState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size == 0 {
		return domain.JointState{}, false
	}
	return s.buf[(s.start+s.size-1)%len(s.buf)].Copy(), true
}

// Snapshot returns the retained states, oldest first.
func (s *Store) Snapshot() []domain.JointState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.JointState, s.size)
	for i := range out {
		out[i] = s.buf[(s.start+i)%len(s.buf)]
	}
	return out
}

// Len is the number of retained states.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Total is the number of states ever written, including evicted ones.
func (s *Store) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// WaitLatest blocks until at least one state is stored or ctx is done.
func (s *Store) WaitLatest(ctx context.Context) (domain.JointState, error) {
	for {
		s.mu.Lock()
		if s.size > 0 {
			st := s.buf[(s.start+s.size-1)%len(s.buf)]
			s.mu.Unlock()
			return st, nil
		}
		ch := s.updated
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.JointState{}, ctx.Err()
		case <-ch:
		}
	}
}

var _ ports.Sink = (*Store)(nil)
