package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Servo7/robot-comm/internal/adapters/audit"
	"github.com/Servo7/robot-comm/internal/adapters/history"
	"github.com/Servo7/robot-comm/internal/adapters/observability"
	"github.com/Servo7/robot-comm/internal/adapters/opcua"
	"github.com/Servo7/robot-comm/internal/adapters/udp"
	"github.com/Servo7/robot-comm/internal/app/pipeline"
	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/kinematics"
	"github.com/Servo7/robot-comm/internal/ports"
	"github.com/Servo7/robot-comm/internal/safety"
)

const (
	TransportUDP   = "udp"
	TransportOPCUA = "opcua"
)

// Config is the master configuration document. The transform and limit keys
// sit at the top level so existing joint_limits.yaml files load unchanged.
type Config struct {
	JointLimits          safety.LimitTable `yaml:"joint_limits"`
	JointMapping         JointMapping      `yaml:"joint_mapping"`
	TransformationMatrix [][]float64       `yaml:"transformation_matrix"`
	JointOffsets         []float64         `yaml:"joint_offsets"`
	GripperScale         *float64          `yaml:"gripper_scale"`
	GripperOffset        *float64          `yaml:"gripper_offset"`

	Policy   ports.Policy            `yaml:"policy"`
	Leader   LeaderConfig            `yaml:"leader"`
	Follower FollowerConfig          `yaml:"follower"`
	Audit    audit.Config            `yaml:"audit"`
	Metrics  MetricsConfig           `yaml:"metrics"`
	Logging  observability.LogConfig `yaml:"logging"`
	Stats    StatsConfig             `yaml:"stats"`
}

type LeaderConfig struct {
	Transport  string `yaml:"transport"`
	udp.Config `yaml:",inline"`
	OPCUA      opcua.Config `yaml:"opcua"`
}

type FollowerConfig struct {
	udp.Config  `yaml:",inline"`
	HistorySize int `yaml:"history_size"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type StatsConfig struct {
	ReportEvery int `yaml:"report_every"`
}

// JointMapping is an ordered list of source->destination moves. It decodes
// from a YAML mapping and keeps document order.
type JointMapping []kinematics.MapEntry

func (m *JointMapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("joint_mapping: line %d: expected a mapping of source to destination index", node.Line)
	}
	out := make(JointMapping, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var src, dst int
		if err := node.Content[i].Decode(&src); err != nil {
			return fmt.Errorf("joint_mapping: line %d: source: %w", node.Content[i].Line, err)
		}
		if err := node.Content[i+1].Decode(&dst); err != nil {
			return fmt.Errorf("joint_mapping: line %d: destination: %w", node.Content[i+1].Line, err)
		}
		out = append(out, kinematics.MapEntry{Src: src, Dst: dst})
	}
	*m = out
	return nil
}

// MarshalYAML writes the mapping back as a YAML mapping in order.
func (m JointMapping) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range m {
		var k, v yaml.Node
		if err := k.Encode(e.Src); err != nil {
			return nil, err
		}
		if err := v.Encode(e.Dst); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &k, &v)
	}
	return node, nil
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates a configuration document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with no transform and no limits.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 1_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 64
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop"
	}
	if c.Leader.Transport == "" {
		c.Leader.Transport = TransportUDP
	}
	c.Leader.Config.ApplyDefaults("0.0.0.0:5555", "leader_joints")
	c.Leader.OPCUA.ApplyDefaults()
	c.Follower.Config.ApplyDefaults("127.0.0.1:5556", "follower_commands")
	if c.Follower.HistorySize <= 0 {
		c.Follower.HistorySize = history.DefaultCapacity
	}
	c.Audit.ApplyDefaults()
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	c.Logging.ApplyDefaults()
	if c.Stats.ReportEvery == 0 {
		c.Stats.ReportEvery = pipeline.DefaultReportEvery
	}
}

func (c *Config) validate() error {
	if err := c.JointLimits.Validate(); err != nil {
		return err
	}
	for _, e := range c.JointMapping {
		if e.Src < 0 || e.Src >= domain.NumJoints || e.Dst < 0 || e.Dst >= domain.NumJoints {
			return fmt.Errorf("joint_mapping: %d->%d outside [0,%d)", e.Src, e.Dst, domain.NumJoints)
		}
	}

	switch c.Policy.OnQueueFull {
	case "block", "drop", "reject":
	default:
		return fmt.Errorf("policy.on_queue_full: unknown policy %q", c.Policy.OnQueueFull)
	}
	if c.Policy.MaxQueueLen < 0 || c.Policy.MaxBatchSize < 0 {
		return fmt.Errorf("policy: queue and batch sizes must not be negative")
	}

	switch c.Leader.Transport {
	case TransportUDP:
		if err := c.Leader.Config.Validate(); err != nil {
			return fmt.Errorf("leader: %w", err)
		}
	case TransportOPCUA:
		if err := c.Leader.OPCUA.Validate(); err != nil {
			return fmt.Errorf("leader.opcua: %w", err)
		}
	default:
		return fmt.Errorf("leader.transport: unknown transport %q", c.Leader.Transport)
	}
	if err := c.Follower.Config.Validate(); err != nil {
		return fmt.Errorf("follower: %w", err)
	}

	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Stats.ReportEvery < 0 {
		return fmt.Errorf("stats.report_every must be positive")
	}
	return nil
}

// Transform returns the kinematic section as an engine configuration.
func (c *Config) Transform() kinematics.Config {
	return kinematics.Config{
		Mapping:       []kinematics.MapEntry(c.JointMapping),
		Matrix:        c.TransformationMatrix,
		Offsets:       c.JointOffsets,
		GripperScale:  c.GripperScale,
		GripperOffset: c.GripperOffset,
	}
}

// LimitNames lists the configured joint limits in joint order.
func (c *Config) LimitNames() []string {
	names := make([]string, 0, len(c.JointLimits))
	for name := range c.JointLimits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
