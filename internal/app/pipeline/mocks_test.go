package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

type mockQueue struct {
	failures   int32
	failAlways bool
	calls      int
}

func (m *mockQueue) Enqueue(uint64, *domain.JointState) bool {
	m.calls++
	if m.failAlways {
		return false
	}
	if atomic.LoadInt32(&m.failures) > 0 {
		atomic.AddInt32(&m.failures, -1)
		return false
	}
	return true
}

func (m *mockQueue) DequeueBatch(int) []ports.QueuedState { return nil }
func (m *mockQueue) Len() int                             { return 0 }

type mockObs struct {
	mu       sync.Mutex
	errors   []error
	infos    []string
	blocked  [][]string
	counters map[string]float64
	gauges   map[string]float64
	observed map[string]int
}

func newMockObs() *mockObs {
	return &mockObs{
		counters: map[string]float64{},
		gauges:   map[string]float64{},
		observed: map[string]int{},
	}
}

func (m *mockObs) LogInfo(msg string, _ ...ports.Field) {
	m.mu.Lock()
	m.infos = append(m.infos, msg)
	m.mu.Unlock()
}
func (m *mockObs) LogWarn(string, ...ports.Field) {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	m.errors = append(m.errors, err)
	m.mu.Unlock()
}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	m.counters[name] += v
	m.mu.Unlock()
}
func (m *mockObs) ObserveLatency(name string, _ float64) {
	m.mu.Lock()
	m.observed[name]++
	m.mu.Unlock()
}
func (m *mockObs) SetGauge(name string, v float64) {
	m.mu.Lock()
	m.gauges[name] = v
	m.mu.Unlock()
}
func (m *mockObs) RecordBlocked(_ *domain.JointState, violations []string) {
	m.mu.Lock()
	m.blocked = append(m.blocked, violations)
	m.mu.Unlock()
}

func (m *mockObs) count(msg string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.infos {
		if s == msg {
			n++
		}
	}
	return n
}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

type captureSink struct {
	mu     sync.Mutex
	states []domain.JointState
	err    error
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) WriteBatch(states []*domain.JointState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for _, s := range states {
		c.states = append(c.states, *s)
	}
	return nil
}

func (c *captureSink) snapshot() []domain.JointState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.JointState(nil), c.states...)
}

type captureAudit struct {
	events []ports.BlockedEvent
	err    error
}

func (c *captureAudit) RecordBlocked(events []ports.BlockedEvent) error {
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, events...)
	return nil
}

var errSink = errors.New("sink unavailable")

type chanCollector struct {
	in       []*domain.JointState
	startErr error
	stopped  atomic.Bool
}

func (c *chanCollector) Start(out chan<- *domain.JointState) error {
	if c.startErr != nil {
		return c.startErr
	}
	go func() {
		for _, s := range c.in {
			out <- s
		}
	}()
	return nil
}

func (c *chanCollector) Stop() error {
	c.stopped.Store(true)
	return nil
}
