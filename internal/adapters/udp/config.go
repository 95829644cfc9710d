package udp

import (
	"errors"
	"fmt"
	"net"

	"github.com/Servo7/robot-comm/internal/codec"
)

// Config describes one end of a topic-framed UDP link. For a collector
// Address is the local listen address; for a publisher it is the peer.
type Config struct {
	Address    string `yaml:"address"`
	Topic      string `yaml:"topic"`
	Codec      string `yaml:"codec"`
	ReadBuffer int    `yaml:"read_buffer"`
}

func (c *Config) ApplyDefaults(defaultAddr, defaultTopic string) {
	if c.Address == "" {
		c.Address = defaultAddr
	}
	if c.Topic == "" {
		c.Topic = defaultTopic
	}
	if c.Codec == "" {
		c.Codec = string(codec.FormatJSON)
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = 1 << 20
	}
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("address is required")
	}
	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("address %q: %w", c.Address, err)
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	if _, err := codec.ParseFormat(c.Codec); err != nil {
		return err
	}
	return nil
}

func (c *Config) codec() (*codec.Codec, error) {
	format, err := codec.ParseFormat(c.Codec)
	if err != nil {
		return nil, err
	}
	return codec.New(c.Topic, format)
}

// ListenFunc opens a packet socket; tests substitute it.
type ListenFunc func(network, address string) (net.PacketConn, error)

// DialFunc opens a connected socket; tests substitute it.
type DialFunc func(network, address string) (net.Conn, error)
