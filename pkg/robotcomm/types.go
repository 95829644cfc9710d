package robotcomm

import (
	"github.com/Servo7/robot-comm/internal/app/pipeline"
	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/kinematics"
	"github.com/Servo7/robot-comm/internal/ports"
	"github.com/Servo7/robot-comm/internal/safety"
)

// NumJoints is the number of joints in every state.
const NumJoints = domain.NumJoints

// JointState is six joint angles in radians, a gripper value and a capture
// timestamp in seconds.
type JointState = domain.JointState

// Collector produces joint states from a leader.
type Collector = ports.Collector

// Sink receives forwarded joint states.
type Sink = ports.Sink

// StateQueue buffers states between ingress and the relay loop.
type StateQueue = ports.StateQueue

// QueuedState is a state waiting in a StateQueue.
type QueuedState = ports.QueuedState

// Observability receives logs and metrics from the pipeline.
type Observability = ports.Observability

// Field is a structured log attribute.
type Field = ports.Field

// AuditLog records blocked messages.
type AuditLog = ports.AuditLog

// BlockedEvent is one blocked message handed to an AuditLog.
type BlockedEvent = ports.BlockedEvent

type (
	// Coordinator runs transform and validation for one message at a time.
	Coordinator = pipeline.Coordinator
	// Result is Forwarded or Blocked.
	Result = pipeline.Result
	// Forwarded holds a state that passed every limit.
	Forwarded = pipeline.Forwarded
	// Blocked holds the violations of a dropped state.
	Blocked = pipeline.Blocked
	// Stats is a snapshot of received/published/blocked counters.
	Stats = pipeline.Stats
)

type (
	// TransformConfig is the kinematic part of a Config.
	TransformConfig = kinematics.Config
	// MapEntry moves one source joint into one destination joint.
	MapEntry = kinematics.MapEntry
	// LimitTable maps joint names to admissible ranges.
	LimitTable = safety.LimitTable
	// Range is an inclusive joint range.
	Range = safety.Range
)

// NewJointState builds a state from exactly six joint values. A zero
// timestamp means now.
func NewJointState(joints []float64, gripper, timestamp float64) (JointState, error) {
	return domain.FromSlice(joints, gripper, timestamp)
}

// JointStateFromMap builds a state from a joint_0..joint_5/gripper/timestamp map.
func JointStateFromMap(m map[string]any) (JointState, error) {
	return domain.FromMap(m)
}

// NewCoordinator builds a standalone coordinator from the transform and limit
// sections of cfg.
func NewCoordinator(cfg *Config) *Coordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return pipeline.NewCoordinator(kinematics.NewEngine(cfg.Transform()), cfg.JointLimits)
}

// Transform runs the kinematic transform without validation.
func Transform(in JointState, cfg TransformConfig) ([NumJoints]float64, float64) {
	return kinematics.Transform(in, cfg)
}

// Validate checks a state against limits.
func Validate(s JointState, limits LimitTable) (bool, []string) {
	return safety.Validate(s, limits)
}
