package robotcomm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Servo7/robot-comm/internal/domain"
)

type stubCollector struct{}

func (s *stubCollector) Start(out chan<- *JointState) error { return nil }
func (s *stubCollector) Stop() error                        { return nil }

type stubSink struct{}

func (s *stubSink) WriteBatch(states []*JointState) error { return nil }
func (s *stubSink) Name() string                          { return "stub" }

type stubQueue struct{}

func (s *stubQueue) Enqueue(seq uint64, st *JointState) bool { return true }
func (s *stubQueue) DequeueBatch(max int) []QueuedState      { return nil }
func (s *stubQueue) Len() int                                { return 0 }

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)                   {}
func (s *stubObservability) LogWarn(string, ...Field)                   {}
func (s *stubObservability) LogError(string, error, ...Field)           {}
func (s *stubObservability) LogCritical(string, error, ...Field)        {}
func (s *stubObservability) IncCounter(string, float64)                 {}
func (s *stubObservability) ObserveLatency(string, float64)             {}
func (s *stubObservability) SetGauge(string, float64)                   {}
func (s *stubObservability) RecordBlocked(*domain.JointState, []string) {}

type stubAudit struct {
	mu     sync.Mutex
	events []BlockedEvent
}

func (s *stubAudit) RecordBlocked(events []BlockedEvent) error {
	s.mu.Lock()
	s.events = append(s.events, events...)
	s.mu.Unlock()
	return nil
}

func (s *stubAudit) snapshot() []BlockedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]BlockedEvent(nil), s.events...)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Policy.IdleSleep = time.Millisecond
	return cfg
}

// publishWhenReady retries until the ingress loop has started the collector.
func publishWhenReady(t *testing.T, p *PushCollector, s JointState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := p.Publish(context.Background(), s)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrCollectorStopped) || time.Now().After(deadline) {
			t.Fatalf("publish: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
