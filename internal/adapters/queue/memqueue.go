package queue

import (
	"sync"

	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering.
type MemQueue struct {
	mu   sync.Mutex
	data []ports.QueuedState
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data: make([]ports.QueuedState, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(seq uint64, s *domain.JointState) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, ports.QueuedState{Seq: seq, State: s})
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedState {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]ports.QueuedState, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.StateQueue = (*MemQueue)(nil)
