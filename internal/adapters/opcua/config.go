package opcua

import (
	"errors"
	"fmt"
	"time"

	"github.com/gopcua/opcua/ua"

	"github.com/Servo7/robot-comm/internal/domain"
)

// Config captures the runtime details required to open an OPC UA session
// against a leader controller.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	Nodes            NodeConfig    `yaml:"nodes"`
}

// NodeConfig names the node that carries each field of a joint state.
type NodeConfig struct {
	Joints  []string `yaml:"joints"`
	Gripper string   `yaml:"gripper"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "Robot Master"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 20 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes.Joints) != domain.NumJoints {
		return fmt.Errorf("nodes.joints must list %d node ids, got %d", domain.NumJoints, len(c.Nodes.Joints))
	}
	for i, id := range c.Nodes.Joints {
		if _, err := ua.ParseNodeID(id); err != nil {
			return fmt.Errorf("nodes.joints[%d] %q: %w", i, id, err)
		}
	}
	if c.Nodes.Gripper != "" {
		if _, err := ua.ParseNodeID(c.Nodes.Gripper); err != nil {
			return fmt.Errorf("nodes.gripper %q: %w", c.Nodes.Gripper, err)
		}
	}
	return nil
}

// field identifies which part of a JointState a monitored item feeds.
type field struct {
	nodeID string
	joint  int // -1 for the gripper
}

// fields lists the monitored items in handle order (handle = index + 1).
func (c *Config) fields() []field {
	out := make([]field, 0, domain.NumJoints+1)
	for i, id := range c.Nodes.Joints {
		out = append(out, field{nodeID: id, joint: i})
	}
	if c.Nodes.Gripper != "" {
		out = append(out, field{nodeID: c.Nodes.Gripper, joint: -1})
	}
	return out
}
