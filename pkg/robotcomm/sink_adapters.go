package robotcomm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Servo7/robot-comm/internal/domain"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("robotcomm: channel sink closed")

// StateBatchSink is invoked with ordered batches of forwarded states.
type StateBatchSink func([]JointState) error

// NewCallbackSink adapts a StateBatchSink into a full Sink implementation so
// callers can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn StateBatchSink) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan []JointState, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []JointState, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   StateBatchSink
}

func (s *callbackSink) WriteBatch(states []*domain.JointState) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(states) == 0 {
		return nil
	}
	return s.fn(copyBatch(states))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []JointState
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (s *channelSink) WriteBatch(states []*domain.JointState) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(states) == 0 {
		return nil
	}

	batch := copyBatch(states)

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

// copyBatch detaches the batch from pipeline-owned pointers.
func copyBatch(states []*domain.JointState) []JointState {
	if len(states) == 0 {
		return nil
	}
	out := make([]JointState, 0, len(states))
	for _, s := range states {
		if s != nil {
			out = append(out, s.Copy())
		}
	}
	return out
}
