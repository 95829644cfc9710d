package robotcomm

import (
	"context"
	"errors"
	"sync"

	"github.com/Servo7/robot-comm/internal/domain"
)

var (
	// ErrQueueFull indicates the ingress buffer rejected a state.
	ErrQueueFull = errors.New("robotcomm: queue full")
	// ErrCollectorStopped is returned by Publish before Start or after Stop.
	ErrCollectorStopped = errors.New("robotcomm: collector not running")
)

// PushCollector lets an in-process leader hand states straight to a Master
// instead of going through a network transport.
type PushCollector struct {
	stopMu sync.Mutex
	mu     sync.RWMutex
	out    chan<- *domain.JointState
	done   chan struct{}
}

func NewPushCollector() *PushCollector { return &PushCollector{} }

func (p *PushCollector) Start(out chan<- *domain.JointState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out != nil {
		return errors.New("push collector already started")
	}
	p.out = out
	p.done = make(chan struct{})
	return nil
}

// Stop releases any blocked Publish calls with ErrCollectorStopped.
func (p *PushCollector) Stop() error {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()

	p.mu.RLock()
	done := p.done
	p.mu.RUnlock()
	if done == nil {
		return nil
	}
	close(done)

	p.mu.Lock()
	p.out = nil
	p.done = nil
	p.mu.Unlock()
	return nil
}

// stamped copies s and sets a zero timestamp to now.
func stamped(s JointState) JointState {
	c := s.Copy()
	if c.Timestamp == 0 {
		c.Timestamp = domain.NowSeconds()
	}
	return c
}

// TryPublish hands s to the master without waiting; it returns ErrQueueFull
// when the ingress buffer is full. A zero timestamp is stamped with now.
func (p *PushCollector) TryPublish(s JointState) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.out == nil {
		return ErrCollectorStopped
	}
	c := stamped(s)
	select {
	case p.out <- &c:
		return nil
	default:
		return ErrQueueFull
	}
}

// Publish waits until s is accepted or ctx is done. A zero timestamp is
// stamped with now.
func (p *PushCollector) Publish(ctx context.Context, s JointState) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.out == nil {
		return ErrCollectorStopped
	}
	c := stamped(s)
	select {
	case p.out <- &c:
		return nil
	case <-p.done:
		return ErrCollectorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishJoints stamps six joint values with the current time and publishes them.
func (p *PushCollector) PublishJoints(ctx context.Context, joints []float64, gripper float64) error {
	s, err := domain.FromSlice(joints, gripper, 0)
	if err != nil {
		return err
	}
	return p.Publish(ctx, s)
}

var _ Collector = (*PushCollector)(nil)
