package robotcomm

import (
	"github.com/Servo7/robot-comm/internal/adapters/audit"
	"github.com/Servo7/robot-comm/internal/adapters/observability"
	"github.com/Servo7/robot-comm/internal/adapters/opcua"
	"github.com/Servo7/robot-comm/internal/adapters/udp"
	"github.com/Servo7/robot-comm/internal/app/config"
	"github.com/Servo7/robot-comm/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls queue thresholds.
	Policy = ports.Policy
	// LeaderConfig selects and configures the leader transport.
	LeaderConfig = config.LeaderConfig
	// FollowerConfig configures the follower link and history size.
	FollowerConfig = config.FollowerConfig
	// UDPConfig is one end of a topic-framed UDP link.
	UDPConfig = udp.Config
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig names the node behind each joint.
	OPCUANodeConfig = opcua.NodeConfig
	// AuditConfig configures the Postgres audit log.
	AuditConfig = audit.Config
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures structured logging.
	LogConfig = observability.LogConfig
	// StatsConfig configures periodic statistics reports.
	StatsConfig = config.StatsConfig
	// JointMapping is the ordered joint_mapping section.
	JointMapping = config.JointMapping
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig decodes and validates an in-memory YAML document.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}

// DefaultConfig returns the defaults: UDP on both sides, identity transform
// and no limits.
func DefaultConfig() *Config {
	return config.Default()
}
