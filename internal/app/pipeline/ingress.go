package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

// ErrQueueFull is logged when a state is dropped by the drop or reject policy.
var ErrQueueFull = errors.New("queue full")

// RunIngress starts col and moves every state it emits into q until ctx is
// done. Sequence numbers are assigned in arrival order starting at 1. The
// collector is stopped before RunIngress returns.
func RunIngress(ctx context.Context, col ports.Collector, q ports.StateQueue, pol ports.Policy, obs ports.Observability) error {
	ch := make(chan *domain.JointState, max(1, pol.MaxQueueLen))

	if err := col.Start(ch); err != nil {
		return fmt.Errorf("start collector: %w", err)
	}

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return col.Stop()
		case s := <-ch:
			if s == nil {
				continue
			}
			seq++
			if !enqueueWithPolicy(ctx, q, seq, s, pol, obs) {
				obs.IncCounter(ports.MetricQueueDropped, 1)
			}
			obs.SetGauge(ports.MetricQueueLength, float64(q.Len()))
		}
	}
}

func enqueueWithPolicy(ctx context.Context, q ports.StateQueue, seq uint64, s *domain.JointState, pol ports.Policy, obs ports.Observability) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(seq, s); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			select {
			case <-ctx.Done():
				return false
			case <-time.After(sleep):
			}
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("%w: capacity %d", ErrQueueFull, pol.MaxQueueLen),
				ports.Field{Key: "seq", Value: seq})
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
