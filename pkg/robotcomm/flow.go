package robotcomm

import (
	"context"
	"errors"
)

// Flow assembles a Master in three steps: configuration, leader side,
// follower side.
//
//	flow, err := robotcomm.Conf("config.yaml", robotcomm.WithoutLimits())
//	...
//	m, err := flow.
//		StreamIN(robotcomm.StreamInCollector(leader)).
//		StreamOUT(robotcomm.StreamOutCallback("log", printStates))
type Flow struct {
	cfg  *Config
	opts []MasterOption
}

type (
	// FlowOption adjusts the configuration or adds master options up front.
	FlowOption func(*Flow)
	// StreamInOption overrides how leader states reach the relay.
	StreamInOption func(*Flow)
	// StreamOutOption overrides where forwarded and blocked states go.
	StreamOutOption func(*Flow)
)

var errNilFlow = errors.New("robotcomm: flow is nil")

// Conf reads a YAML configuration file and starts a Flow from it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from a Config built in code. The Config is
// used by reference; FlowOptions such as WithoutLimits modify it.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, errors.New("robotcomm: config is required")
	}
	f := &Flow{cfg: cfg}
	applyAll(f, opts)
	return f, nil
}

func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options adds MasterOptions directly.
func (f *Flow) Options(opts ...MasterOption) *Flow {
	if f == nil {
		return nil
	}
	f.add(opts...)
	return f
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	applyAll(f, opts)
	return f
}

// StreamOUT applies the follower-side overrides and builds the Master. Later
// options win when two replace the same dependency.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Master, error) {
	if f == nil {
		return nil, errNilFlow
	}
	applyAll(f, opts)
	return NewMaster(f.cfg, f.opts...)
}

// Run builds the Master and runs it until ctx is cancelled.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	m, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return m.Run(ctx)
}

func WithFlowOptions(opts ...MasterOption) FlowOption {
	return func(f *Flow) { f.add(opts...) }
}

// WithoutLimits empties joint_limits, so every transformed state is
// forwarded. The master logs a warning at startup.
func WithoutLimits() FlowOption {
	return func(f *Flow) {
		if f.cfg != nil {
			f.cfg.JointLimits = nil
		}
	}
}

// StreamInCollector replaces the configured leader transport, e.g. with a
// PushCollector or a simulator.
func StreamInCollector(col Collector) StreamInOption {
	return when(col != nil, func() MasterOption { return WithCollector(col) })
}

func StreamInQueue(q StateQueue) StreamInOption {
	return when(q != nil, func() MasterOption { return WithStateQueue(q) })
}

func StreamInObservability(obs Observability) StreamInOption {
	return when(obs != nil, func() MasterOption { return WithObservability(obs) })
}

// StreamOutSink replaces the UDP follower publisher.
func StreamOutSink(s Sink) StreamOutOption {
	return when(s != nil, func() MasterOption { return WithSink(s) })
}

// StreamOutTee keeps the follower and also writes forwarded states to s.
func StreamOutTee(s Sink) StreamOutOption {
	return when(s != nil, func() MasterOption { return WithAdditionalSink(s) })
}

// StreamOutAudit sends blocked states to a rather than the Postgres table.
func StreamOutAudit(a AuditLog) StreamOutOption {
	return when(a != nil, func() MasterOption { return WithAuditLog(a) })
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return when(obs != nil, func() MasterOption { return WithObservability(obs) })
}

// StreamOutCallback replaces the follower with fn. A nil fn makes every
// write fail, which shows up as robot_sink_errors_total.
func StreamOutCallback(name string, fn StateBatchSink) StreamOutOption {
	return func(f *Flow) { f.add(WithSink(NewCallbackSink(name, fn))) }
}

// when adds the option built by mk only if ok; a nil dependency keeps the default.
func when(ok bool, mk func() MasterOption) func(*Flow) {
	return func(f *Flow) {
		if ok {
			f.add(mk())
		}
	}
}

func applyAll[O ~func(*Flow)](f *Flow, opts []O) {
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
}

func (f *Flow) add(opts ...MasterOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
