package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/Servo7/robot-comm/internal/codec"
	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

// Publisher sends each state as one datagram to a fixed peer. Delivery is
// best effort.
type Publisher struct {
	cfg   Config
	codec *codec.Codec
	dial  DialFunc

	mu   sync.Mutex
	conn net.Conn
}

// PublisherOption customizes a Publisher.
type PublisherOption func(*Publisher)

// WithDialFunc replaces net.Dial.
func WithDialFunc(fn DialFunc) PublisherOption {
	return func(p *Publisher) {
		if fn != nil {
			p.dial = fn
		}
	}
}

func NewPublisher(cfg Config, opts ...PublisherOption) (*Publisher, error) {
	cfg.ApplyDefaults("127.0.0.1:5556", "follower_commands")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cd, err := cfg.codec()
	if err != nil {
		return nil, err
	}
	p := &Publisher{cfg: cfg, codec: cd, dial: net.Dial}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *Publisher) Name() string { return "udp:" + p.cfg.Topic }

// WriteBatch encodes and sends every state; the first error is returned after
// the rest of the batch has been attempted.
func (p *Publisher) WriteBatch(states []*domain.JointState) error {
	if len(states) == 0 {
		return nil
	}
	conn, err := p.connection()
	if err != nil {
		return err
	}
	var errs []error
	for _, s := range states {
		if s == nil {
			continue
		}
		if err := p.send(conn, *s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publish sends a single state.
func (p *Publisher) Publish(s domain.JointState) error {
	conn, err := p.connection()
	if err != nil {
		return err
	}
	return p.send(conn, s)
}

func (p *Publisher) send(conn net.Conn, s domain.JointState) error {
	frame, err := p.codec.Encode(s)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("udp send %s: %w", p.cfg.Address, err)
	}
	return nil
}

func (p *Publisher) connection() (net.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn, nil
	}
	conn, err := p.dial("udp", p.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("udp dial %s: %w", p.cfg.Address, err)
	}
	p.conn = conn
	return conn, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

var _ ports.Sink = (*Publisher)(nil)
