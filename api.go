package robotcomm

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	base "github.com/Servo7/robot-comm/pkg/robotcomm"
)

// Re-exported errors for convenience.
var (
	ErrQueueFull         = base.ErrQueueFull
	ErrCollectorStopped  = base.ErrCollectorStopped
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// NumJoints is the number of joints in every state.
const NumJoints = base.NumJoints

// Type aliases so consumers can import github.com/Servo7/robot-comm directly.
type (
	Config          = base.Config
	Policy          = base.Policy
	LeaderConfig    = base.LeaderConfig
	FollowerConfig  = base.FollowerConfig
	UDPConfig       = base.UDPConfig
	OPCUAConfig     = base.OPCUAConfig
	OPCUANodeConfig = base.OPCUANodeConfig
	AuditConfig     = base.AuditConfig
	MetricsConfig   = base.MetricsConfig
	LogConfig       = base.LogConfig
	StatsConfig     = base.StatsConfig
	JointMapping    = base.JointMapping
	Flow            = base.Flow
	FlowOption      = base.FlowOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	Master          = base.Master
	MasterOption    = base.MasterOption
	PushCollector   = base.PushCollector
	JointState      = base.JointState
	StateBatchSink  = base.StateBatchSink
	Collector       = base.Collector
	Sink            = base.Sink
	StateQueue      = base.StateQueue
	QueuedState     = base.QueuedState
	Observability   = base.Observability
	Field           = base.Field
	AuditLog        = base.AuditLog
	BlockedEvent    = base.BlockedEvent
	Coordinator     = base.Coordinator
	Result          = base.Result
	Forwarded       = base.Forwarded
	Blocked         = base.Blocked
	Stats           = base.Stats
	TransformConfig = base.TransformConfig
	MapEntry        = base.MapEntry
	LimitTable      = base.LimitTable
	Range           = base.Range
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...MasterOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func WithoutLimits() FlowOption {
	return base.WithoutLimits()
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInQueue(q StateQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutTee(s Sink) StreamOutOption {
	return base.StreamOutTee(s)
}

func StreamOutAudit(a AuditLog) StreamOutOption {
	return base.StreamOutAudit(a)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn StateBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Master and options.
func NewMaster(cfg *Config, opts ...MasterOption) (*Master, error) {
	return base.NewMaster(cfg, opts...)
}

func WithCollector(col Collector) MasterOption {
	return base.WithCollector(col)
}

func WithSink(s Sink) MasterOption {
	return base.WithSink(s)
}

func WithAdditionalSink(s Sink) MasterOption {
	return base.WithAdditionalSink(s)
}

func WithAuditLog(a AuditLog) MasterOption {
	return base.WithAuditLog(a)
}

func WithStateQueue(q StateQueue) MasterOption {
	return base.WithStateQueue(q)
}

func WithObservability(obs Observability) MasterOption {
	return base.WithObservability(obs)
}

func WithLogger(l *slog.Logger) MasterOption {
	return base.WithLogger(l)
}

func WithMasterID(id uuid.UUID) MasterOption {
	return base.WithMasterID(id)
}

// Collectors and sink adapters.
func NewPushCollector() *PushCollector {
	return base.NewPushCollector()
}

func NewCallbackSink(name string, fn StateBatchSink) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan []JointState, func()) {
	return base.NewChannelSink(name, buffer)
}

// Standalone pipeline helpers.
func NewJointState(joints []float64, gripper, timestamp float64) (JointState, error) {
	return base.NewJointState(joints, gripper, timestamp)
}

func JointStateFromMap(m map[string]any) (JointState, error) {
	return base.JointStateFromMap(m)
}

func NewCoordinator(cfg *Config) *Coordinator {
	return base.NewCoordinator(cfg)
}

func Transform(in JointState, cfg TransformConfig) ([NumJoints]float64, float64) {
	return base.Transform(in, cfg)
}

func Validate(s JointState, limits LimitTable) (bool, []string) {
	return base.Validate(s, limits)
}

// Run loads path and runs a master until ctx is cancelled.
func Run(ctx context.Context, path string, opts ...StreamOutOption) error {
	flow, err := Conf(path)
	if err != nil {
		return err
	}
	return flow.Run(ctx, opts...)
}
