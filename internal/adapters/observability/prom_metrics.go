package observability

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the relay metrics on reg (the default registerer when
// nil) and logs through logger (slog.Default when nil).
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	received := counter(ports.MetricReceived, "Joint-state messages received from the leader.")
	published := counter(ports.MetricPublished, "Transformed messages forwarded to the follower.")
	blocked := counter(ports.MetricBlocked, "Messages dropped for violating joint limits.")
	decodeErrs := counter(ports.MetricDecodeErrors, "Leader frames that could not be decoded.")
	queueDrops := counter(ports.MetricQueueDropped, "Messages lost due to queue backpressure policies.")
	sinkErrs := counter(ports.MetricSinkErrors, "Failed follower or audit writes.")
	queueLen := gauge(ports.MetricQueueLength, "Current number of states buffered in the in-memory queue.")
	blockRatio := gauge(ports.MetricBlockRatio, "Blocked / received since start.")
	age := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricMessageAge,
		Help:    "Age of forwarded states measured from source capture time.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricProcessLatency,
		Help:    "Time spent transforming and validating one batch.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	reg.MustRegister(received, published, blocked, decodeErrs, queueDrops, sinkErrs, queueLen, blockRatio, age, latency)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			ports.MetricReceived:     received,
			ports.MetricPublished:    published,
			ports.MetricBlocked:      blocked,
			ports.MetricDecodeErrors: decodeErrs,
			ports.MetricQueueDropped: queueDrops,
			ports.MetricSinkErrors:   sinkErrs,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricQueueLength: queueLen,
			ports.MetricBlockRatio:  blockRatio,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricMessageAge:     age,
			ports.MetricProcessLatency: latency,
		},
	}
}

// Logger exposes the underlying slog logger.
func (p *PromObs) Logger() *slog.Logger { return p.logger }

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs(fields)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.LogAttrs(context.Background(), slog.LevelError, msg, withErr(err, fields)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	a := append(withErr(err, fields), slog.Bool("critical", true))
	p.logger.LogAttrs(context.Background(), slog.LevelError, msg, a...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordBlocked(s *domain.JointState, violations []string) {
	p.IncCounter(ports.MetricBlocked, 1)
	a := []slog.Attr{slog.String("violations", strings.Join(violations, "; "))}
	if s != nil {
		a = append(a, slog.Float64("timestamp", s.Timestamp))
	}
	p.logger.LogAttrs(context.Background(), slog.LevelWarn, "limits_violated", a...)
}

func attrs(fields []ports.Field) []slog.Attr {
	out := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func withErr(err error, fields []ports.Field) []slog.Attr {
	a := attrs(fields)
	if err != nil {
		a = append(a, slog.String("error", err.Error()))
	}
	return a
}

var _ ports.Observability = (*PromObs)(nil)
