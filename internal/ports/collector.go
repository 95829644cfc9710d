package ports

import "github.com/Servo7/robot-comm/internal/domain"

// Collector delivers decoded leader states. Malformed input is dropped by the
// collector and never reaches out.
type Collector interface {
	Start(out chan<- *domain.JointState) error
	Stop() error
}
