package pipeline

import (
	"sync/atomic"

	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/kinematics"
	"github.com/Servo7/robot-comm/internal/safety"
)

// Result is the outcome of processing one message: Forwarded or Blocked.
type Result interface {
	isResult()
}

// Forwarded carries a transformed state that passed every limit.
type Forwarded struct {
	State domain.JointState
}

// Blocked carries the violations that stopped a message. Transformed is the
// state that was rejected; it must not be sent to the follower.
type Blocked struct {
	Transformed domain.JointState
	Violations  []string
}

func (Forwarded) isResult() {}
func (Blocked) isResult()   {}

// Stats is a point-in-time copy of a coordinator's counters.
type Stats struct {
	Received  uint64
	Published uint64
	Blocked   uint64
}

// BlockRatio is Blocked / max(1, Received).
func (s Stats) BlockRatio() float64 {
	return float64(s.Blocked) / float64(max(1, s.Received))
}

// BlockPercent is BlockRatio scaled to 0..100.
func (s Stats) BlockPercent() float64 {
	return 100 * s.BlockRatio()
}

// Coordinator runs the transform then the limit check for each message and
// counts the outcome. Counters are atomic so Stats may be read from any
// goroutine; Process itself is expected to be driven by a single relay loop.
type Coordinator struct {
	engine *kinematics.Engine
	limits safety.LimitTable

	received  atomic.Uint64
	published atomic.Uint64
	blocked   atomic.Uint64
}

// NewCoordinator builds a coordinator. A nil engine is the identity
// transform; empty limits mean unrestricted pass-through.
func NewCoordinator(engine *kinematics.Engine, limits safety.LimitTable) *Coordinator {
	if engine == nil {
		engine = kinematics.NewEngine(kinematics.Config{})
	}
	return &Coordinator{engine: engine, limits: limits}
}

// Unrestricted reports whether no limit table is configured.
func (c *Coordinator) Unrestricted() bool { return len(c.limits) == 0 }

// Warnings lists configuration problems an operator should see at startup.
func (c *Coordinator) Warnings() []string {
	w := c.engine.Warnings()
	if c.Unrestricted() {
		w = append(w, "no joint limits configured; all messages pass unrestricted")
	}
	return w
}

// Process transforms in and validates the result. The input timestamp is
// carried through unchanged so downstream age measurements reflect capture
// time.
func (c *Coordinator) Process(in domain.JointState) Result {
	c.received.Add(1)

	joints, gripper := c.engine.Transform(in)
	out := domain.JointState{Joints: joints, Gripper: gripper, Timestamp: in.Timestamp}

	if ok, violations := safety.Validate(out, c.limits); !ok {
		c.blocked.Add(1)
		return Blocked{Transformed: out, Violations: violations}
	}
	c.published.Add(1)
	return Forwarded{State: out}
}

// Stats returns a snapshot of the counters. Outcomes are loaded before
// received, so Published+Blocked never exceeds Received in a snapshot taken
// while Process is running.
func (c *Coordinator) Stats() Stats {
	blocked := c.blocked.Load()
	published := c.published.Load()
	return Stats{
		Received:  c.received.Load(),
		Published: published,
		Blocked:   blocked,
	}
}
