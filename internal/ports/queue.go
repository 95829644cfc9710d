package ports

import "github.com/Servo7/robot-comm/internal/domain"

// QueuedState is a state waiting for the relay loop, tagged with its ingress sequence.
type QueuedState struct {
	Seq   uint64
	State *domain.JointState
}

type StateQueue interface {
	Enqueue(seq uint64, s *domain.JointState) bool
	DequeueBatch(max int) []QueuedState
	Len() int
}
