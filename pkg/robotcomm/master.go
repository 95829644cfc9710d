package robotcomm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Servo7/robot-comm/internal/adapters/audit"
	"github.com/Servo7/robot-comm/internal/adapters/history"
	"github.com/Servo7/robot-comm/internal/adapters/observability"
	"github.com/Servo7/robot-comm/internal/adapters/opcua"
	"github.com/Servo7/robot-comm/internal/adapters/queue"
	"github.com/Servo7/robot-comm/internal/adapters/udp"
	"github.com/Servo7/robot-comm/internal/app/config"
	"github.com/Servo7/robot-comm/internal/app/pipeline"
	"github.com/Servo7/robot-comm/internal/kinematics"
	"github.com/Servo7/robot-comm/internal/ports"
)

// MasterOption customizes the dependencies used by Master.
type MasterOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	sink          Sink
	extraSinks    []Sink
	audit         AuditLog
	queue         StateQueue
	observability Observability
	logger        *slog.Logger
	masterID      uuid.UUID
}

// WithCollector injects a custom leader collector (simulators, PushCollector, other transports).
func WithCollector(col Collector) MasterOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithSink replaces the follower publisher.
func WithSink(s Sink) MasterOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithAdditionalSink adds a sink that receives forwarded states alongside the follower.
func WithAdditionalSink(s Sink) MasterOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.extraSinks = append(o.extraSinks, s)
		}
	}
}

// WithAuditLog replaces the Postgres audit log.
func WithAuditLog(a AuditLog) MasterOption {
	return func(o *runtimeOverrides) {
		o.audit = a
	}
}

// WithStateQueue injects a custom queue implementation.
func WithStateQueue(q StateQueue) MasterOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) MasterOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger routes the default observability backend through logger instead
// of one built from the logging section.
func WithLogger(l *slog.Logger) MasterOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithMasterID fixes the id stamped on audit rows; a random one is used otherwise.
func WithMasterID(id uuid.UUID) MasterOption {
	return func(o *runtimeOverrides) {
		o.masterID = id
	}
}

// Master wires the leader collector -> queue -> coordinator -> follower
// pipeline and exposes lifecycle hooks for embedding it in any Go service.
type Master struct {
	cfg         *Config
	obs         ports.Observability
	registry    *prometheus.Registry
	logCloser   io.Closer
	queue       ports.StateQueue
	collector   ports.Collector
	follower    ports.Sink
	history     *history.Store
	coordinator *pipeline.Coordinator
	relay       *pipeline.Relay
	masterID    uuid.UUID
	db          *sql.DB

	metricsSrv *http.Server
	metricsLn  net.Listener

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
	started bool
}

// NewMaster bootstraps the default adapters (UDP or OPC UA leader, UDP
// follower, in-memory queue, history store, Prometheus observability).
// MasterOption values override any of them.
func NewMaster(cfg *Config, opts ...MasterOption) (*Master, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	m := &Master{cfg: cfg, registry: prometheus.NewRegistry(), logCloser: nopCloser{}}
	m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m.obs = overrides.observability
	if m.obs == nil {
		logger := overrides.logger
		if logger == nil {
			l, closer, err := observability.NewLogger(cfg.Logging)
			if err != nil {
				return nil, fmt.Errorf("logger: %w", err)
			}
			logger, m.logCloser = l, closer
		}
		m.obs = observability.NewPromObs(m.registry, logger)
	}

	m.queue = overrides.queue
	if m.queue == nil {
		m.queue = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}

	var err error
	m.collector = overrides.collector
	if m.collector == nil {
		m.collector, err = newLeaderCollector(cfg, m.obs)
		if err != nil {
			m.logCloser.Close()
			return nil, err
		}
	}

	m.follower = overrides.sink
	if m.follower == nil {
		m.follower, err = udp.NewPublisher(cfg.Follower.Config)
		if err != nil {
			m.logCloser.Close()
			return nil, fmt.Errorf("follower: %w", err)
		}
	}

	m.history = history.NewStore(cfg.Follower.HistorySize)
	sinks := append([]ports.Sink{m.follower, m.history}, overrides.extraSinks...)

	m.masterID = overrides.masterID
	if m.masterID == uuid.Nil {
		m.masterID = uuid.New()
	}

	m.coordinator = pipeline.NewCoordinator(kinematics.NewEngine(cfg.Transform()), cfg.JointLimits)
	m.relay = &pipeline.Relay{
		Queue:       m.queue,
		Coordinator: m.coordinator,
		Sinks:       sinks,
		Policy:      cfg.Policy,
		Obs:         m.obs,
		ReportEvery: cfg.Stats.ReportEvery,
	}
	if overrides.audit != nil {
		m.relay.Audit = overrides.audit
	}
	return m, nil
}

func newLeaderCollector(cfg *Config, obs ports.Observability) (ports.Collector, error) {
	switch cfg.Leader.Transport {
	case config.TransportOPCUA:
		col, err := opcua.NewCollector(cfg.Leader.OPCUA, obs)
		if err != nil {
			return nil, fmt.Errorf("leader opcua: %w", err)
		}
		return col, nil
	case config.TransportUDP, "":
		col, err := udp.NewCollector(cfg.Leader.Config, obs)
		if err != nil {
			return nil, fmt.Errorf("leader udp: %w", err)
		}
		return col, nil
	default:
		return nil, fmt.Errorf("leader: unknown transport %q", cfg.Leader.Transport)
	}
}

// Start connects the audit database when configured, starts the metrics
// server and launches the ingress and relay loops. It returns once
// everything is running; call Run to block on a context instead.
func (m *Master) Start(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("master is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("master already started")
	}

	for _, w := range m.coordinator.Warnings() {
		m.obs.LogWarn("config_warning", ports.Field{Key: "warning", Value: w})
	}

	if m.relay.Audit == nil && m.cfg.Audit.Enabled() {
		if err := m.openAudit(ctx); err != nil {
			return err
		}
	}

	if err := m.startMetrics(); err != nil {
		if m.db != nil {
			m.db.Close()
			m.db = nil
		}
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return pipeline.RunIngress(gctx, m.collector, m.queue, m.cfg.Policy, m.obs)
	})
	g.Go(func() error {
		return m.relay.Run(gctx)
	})
	g.Go(func() error {
		m.recordGauges(gctx, time.Second)
		return nil
	})

	m.cancel = cancel
	m.done = make(chan struct{})
	m.started = true
	go func() {
		err := g.Wait()
		m.mu.Lock()
		m.runErr = err
		m.mu.Unlock()
		close(m.done)
	}()

	m.obs.LogInfo("master_started",
		ports.Field{Key: "master_id", Value: m.masterID.String()},
		ports.Field{Key: "leader", Value: m.cfg.Leader.Transport},
		ports.Field{Key: "follower", Value: m.follower.Name()},
		ports.Field{Key: "limits", Value: len(m.cfg.JointLimits)},
	)
	return nil
}

func (m *Master) openAudit(ctx context.Context) error {
	db, err := audit.Open(ctx, m.cfg.Audit.ConnString)
	if err != nil {
		return err
	}
	pa, err := audit.NewPostgresAudit(db, m.cfg.Audit.Table, m.masterID)
	if err != nil {
		db.Close()
		return err
	}
	if err := pa.EnsureSchema(ctx); err != nil {
		db.Close()
		return fmt.Errorf("audit schema: %w", err)
	}
	m.db = db
	m.relay.Audit = pa
	return nil
}

// Run starts the master and blocks until ctx is cancelled or a loop fails,
// then shuts down gracefully.
func (m *Master) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
	case <-m.done:
		m.mu.Lock()
		runErr = m.runErr
		m.mu.Unlock()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, m.Shutdown(shutdownCtx))
}

// Shutdown stops the loops, which drain the queue and stop the collector,
// then closes the metrics server, follower link, audit database and log file.
func (m *Master) Shutdown(ctx context.Context) error {
	var errs []error

	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for pipeline: %w", ctx.Err()))
		}
	}

	if m.metricsSrv != nil {
		if err := m.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		m.metricsSrv = nil
	}

	if c, ok := m.follower.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if m.db != nil {
		if err := m.db.Close(); err != nil {
			errs = append(errs, err)
		}
		m.db = nil
	}

	if err := m.logCloser.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Stats returns the coordinator counters.
func (m *Master) Stats() Stats { return m.coordinator.Stats() }

// Latest returns the most recent forwarded state.
func (m *Master) Latest() (JointState, bool) { return m.history.Latest() }

// History exposes the bounded store of forwarded states.
func (m *Master) History() *history.Store { return m.history }

// MasterID is the id stamped on audit rows.
func (m *Master) MasterID() uuid.UUID { return m.masterID }

// Registry is the Prometheus registry served on /metrics.
func (m *Master) Registry() *prometheus.Registry { return m.registry }

// MetricsAddr is the bound metrics address once started.
func (m *Master) MetricsAddr() net.Addr {
	if m.metricsLn == nil {
		return nil
	}
	return m.metricsLn.Addr()
}

func (m *Master) startMetrics() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ln, err := net.Listen("tcp", m.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", m.cfg.Metrics.Addr, err)
	}
	m.metricsLn = ln
	m.metricsSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := m.metricsSrv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.obs.LogError("metrics_server_exited", err)
		}
	}()
	return nil
}

func (m *Master) recordGauges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.obs.SetGauge(ports.MetricQueueLength, float64(m.queue.Len()))
			m.obs.SetGauge(ports.MetricBlockRatio, m.coordinator.Stats().BlockRatio())
		}
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
