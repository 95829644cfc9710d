package robotcomm

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewMasterWithCustomAdapters(t *testing.T) {
	cfg := testConfig()

	queueStub := &stubQueue{}
	collectorStub := &stubCollector{}
	sinkStub := &stubSink{}
	obsStub := &stubObservability{}
	auditStub := &stubAudit{}
	id := uuid.New()

	m, err := NewMaster(
		cfg,
		WithCollector(collectorStub),
		WithSink(sinkStub),
		WithStateQueue(queueStub),
		WithObservability(obsStub),
		WithAuditLog(auditStub),
		WithMasterID(id),
	)
	if err != nil {
		t.Fatalf("NewMaster returned error: %v", err)
	}

	if m.collector != collectorStub {
		t.Fatalf("expected custom collector to be used")
	}
	if m.follower != sinkStub {
		t.Fatalf("expected custom sink to be used")
	}
	if m.queue != queueStub {
		t.Fatalf("expected custom queue to be used")
	}
	if m.obs != obsStub {
		t.Fatalf("expected custom observability to be used")
	}
	if m.relay.Audit != auditStub {
		t.Fatalf("expected custom audit log to be used")
	}
	if m.MasterID() != id {
		t.Fatalf("expected fixed master id")
	}
	if m.db != nil {
		t.Fatalf("expected db to be nil when audit is disabled")
	}
	if len(m.relay.Sinks) != 2 || m.relay.Sinks[1] != m.History() {
		t.Fatalf("expected follower and history sinks, got %d", len(m.relay.Sinks))
	}
}

func TestNewMasterRejectsNilConfig(t *testing.T) {
	if _, err := NewMaster(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestNewMasterBuildsDefaultAdapters(t *testing.T) {
	cfg := testConfig()
	cfg.Leader.Address = "127.0.0.1:0"

	m, err := NewMaster(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("NewMaster returned error: %v", err)
	}
	if m.follower.Name() != "udp:follower_commands" {
		t.Fatalf("unexpected follower %s", m.follower.Name())
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestMasterRelaysAndBlocks(t *testing.T) {
	cfg := testConfig()
	cfg.JointLimits = LimitTable{"joint_1": {Min: -0.5, Max: 0.5}}
	gs := 0.5
	cfg.GripperScale = &gs

	push := NewPushCollector()
	sink, batches, closeBatches := NewChannelSink("follower", 8)
	defer closeBatches()
	audit := &stubAudit{}

	m, err := NewMaster(cfg,
		WithCollector(push),
		WithSink(sink),
		WithAuditLog(audit),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Shutdown(context.Background())

	ok := JointState{Joints: [NumJoints]float64{0, 0.2}, Gripper: 0.8, Timestamp: 10}
	bad := JointState{Joints: [NumJoints]float64{0, 0.8}, Timestamp: 11}
	publishWhenReady(t, push, ok)
	publishWhenReady(t, push, bad)

	select {
	case batch := <-batches:
		if len(batch) != 1 || batch[0].Joints[1] != 0.2 || batch[0].Gripper != 0.4 || batch[0].Timestamp != 10 {
			t.Fatalf("unexpected forwarded batch %+v", batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded state")
	}

	waitFor(t, "both messages processed", func() bool { return m.Stats().Received == 2 })
	waitFor(t, "audit event", func() bool { return len(audit.snapshot()) == 1 })

	st := m.Stats()
	if st.Published != 1 || st.Blocked != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if ev := audit.snapshot()[0]; ev.Source.Timestamp != 11 || len(ev.Violations) != 1 {
		t.Fatalf("unexpected audit event %+v", ev)
	}
	latest, found := m.Latest()
	if !found || latest.Timestamp != 10 {
		t.Fatalf("unexpected latest state %+v (found=%v)", latest, found)
	}
}

func TestMasterServesMetrics(t *testing.T) {
	m, err := NewMaster(testConfig(),
		WithCollector(&stubCollector{}),
		WithSink(&stubSink{}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Shutdown(context.Background())

	base := "http://" + m.MetricsAddr().String()

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected healthz response %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, name := range []string{"robot_messages_received_total", "robot_block_ratio", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("expected %s in metrics output", name)
		}
	}
}

func TestMasterRunStopsOnCancel(t *testing.T) {
	m, err := NewMaster(testConfig(),
		WithCollector(&stubCollector{}),
		WithSink(&stubSink{}),
		WithObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMasterStartTwice(t *testing.T) {
	m, err := NewMaster(testConfig(),
		WithCollector(&stubCollector{}),
		WithSink(&stubSink{}),
		WithObservability(&stubObservability{}),
	)
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Shutdown(context.Background())
	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected second Start to fail")
	}
}
