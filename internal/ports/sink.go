package ports

import "github.com/Servo7/robot-comm/internal/domain"

// Sink receives forwarded (validated) states in arrival order.
type Sink interface {
	WriteBatch(states []*domain.JointState) error
	Name() string
}

// BlockedEvent describes one message dropped by the limit validator.
type BlockedEvent struct {
	// Source is the input as received from the leader.
	Source domain.JointState
	// Transformed is the state that failed validation.
	Transformed domain.JointState
	Violations  []string
	ReceivedAt  float64
}

// AuditLog records blocked messages for later review.
type AuditLog interface {
	RecordBlocked(events []BlockedEvent) error
}
