package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Servo7/robot-comm/internal/adapters/queue"
	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
	"github.com/Servo7/robot-comm/internal/safety"
)

func newRelay(q ports.StateQueue, sinks ...ports.Sink) (*Relay, *mockObs, *captureAudit) {
	obs := newMockObs()
	audit := &captureAudit{}
	return &Relay{
		Queue:       q,
		Coordinator: NewCoordinator(nil, safety.LimitTable{"joint_0": {Min: -1, Max: 1}}),
		Sinks:       sinks,
		Audit:       audit,
		Policy:      ports.Policy{MaxBatchSize: 2, IdleSleep: time.Millisecond},
		Obs:         obs,
	}, obs, audit
}

func fill(q ports.StateQueue, joint0 ...float64) {
	for i, v := range joint0 {
		q.Enqueue(uint64(i+1), &domain.JointState{Joints: [domain.NumJoints]float64{v}, Timestamp: float64(i + 1)})
	}
}

func TestRelayStepForwardsAndAudits(t *testing.T) {
	q := queue.NewMemQueue(10)
	fill(q, 0.5, 3, -0.2)

	sink := &captureSink{}
	r, obs, audit := newRelay(q, sink)

	assert.Equal(t, 2, r.step())
	assert.Equal(t, 1, r.step())
	assert.Equal(t, 0, r.step())

	got := sink.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Timestamp)
	assert.Equal(t, 3.0, got[1].Timestamp)

	require.Len(t, audit.events, 1)
	ev := audit.events[0]
	assert.Equal(t, 3.0, ev.Source.Joints[0])
	assert.Equal(t, 3.0, ev.Transformed.Joints[0])
	require.Len(t, ev.Violations, 1)
	assert.Contains(t, ev.Violations[0], "joint_0")

	assert.Len(t, obs.blocked, 1)
	assert.Equal(t, 3.0, obs.counter(ports.MetricReceived))
	assert.Equal(t, 2.0, obs.counter(ports.MetricPublished))
	assert.Equal(t, Stats{Received: 3, Published: 2, Blocked: 1}, r.Coordinator.Stats())
	assert.InDelta(t, 1.0/3.0, obs.gauges[ports.MetricBlockRatio], 1e-12)
	assert.Equal(t, 2, obs.observed[ports.MetricMessageAge])
}

func TestRelaySinkAndAuditErrorsAreCounted(t *testing.T) {
	q := queue.NewMemQueue(10)
	fill(q, 0, 5)

	failing := &captureSink{err: errSink}
	healthy := &captureSink{}
	r, obs, audit := newRelay(q, failing, healthy)
	audit.err = errSink

	r.step()
	assert.Len(t, healthy.snapshot(), 1)
	assert.Equal(t, 2.0, obs.counter(ports.MetricSinkErrors))
	assert.Len(t, obs.errors, 2)
}

func TestRelayReportsEveryN(t *testing.T) {
	q := queue.NewMemQueue(20)
	fill(q, make([]float64, 7)...)

	r, obs, _ := newRelay(q, &captureSink{})
	r.ReportEvery = 3
	r.Policy.MaxBatchSize = 0

	r.step()
	assert.Equal(t, 2, obs.count("stats_report"))
}

func TestRelayRunDrainsOnCancel(t *testing.T) {
	q := queue.NewMemQueue(10)
	sink := &captureSink{}
	r, obs, _ := newRelay(q, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	fill(q, 0.1, 0.2, 0.3, 0.4, 0.5)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
	assert.Len(t, sink.snapshot(), 5)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 1, obs.count("stats_final"))
}

func TestRelayMessageAgeUsesSourceTimestamp(t *testing.T) {
	q := queue.NewMemQueue(2)
	q.Enqueue(1, &domain.JointState{Timestamp: 100})

	r, obs, _ := newRelay(q, &captureSink{})
	r.Now = func() time.Time { return time.Unix(102, 0) }
	r.step()
	assert.Equal(t, 1, obs.observed[ports.MetricMessageAge])
}
