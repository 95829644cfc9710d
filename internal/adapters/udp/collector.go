package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Servo7/robot-comm/internal/codec"
	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

const (
	maxDatagram  = 64 * 1024
	pollInterval = 100 * time.Millisecond
)

// Collector receives leader frames on a UDP socket and emits decoded states.
type Collector struct {
	cfg    Config
	codec  *codec.Codec
	obs    ports.Observability
	listen ListenFunc

	mu      sync.Mutex
	conn    net.PacketConn
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// CollectorOption customizes a Collector.
type CollectorOption func(*Collector)

// WithListenFunc replaces net.ListenPacket.
func WithListenFunc(fn ListenFunc) CollectorOption {
	return func(c *Collector) {
		if fn != nil {
			c.listen = fn
		}
	}
}

func NewCollector(cfg Config, obs ports.Observability, opts ...CollectorOption) (*Collector, error) {
	cfg.ApplyDefaults("0.0.0.0:5555", "leader_joints")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, errors.New("udp collector: observability is required")
	}
	cd, err := cfg.codec()
	if err != nil {
		return nil, err
	}
	c := &Collector{cfg: cfg, codec: cd, obs: obs, listen: net.ListenPacket}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// LocalAddr is the bound address once started.
func (c *Collector) LocalAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.LocalAddr()
}

func (c *Collector) Start(out chan<- *domain.JointState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("udp collector already started")
	}

	conn, err := c.listen("udp", c.cfg.Address)
	if err != nil {
		return fmt.Errorf("udp listen %s: %w", c.cfg.Address, err)
	}
	if rb, ok := conn.(interface{ SetReadBuffer(int) error }); ok {
		if err := rb.SetReadBuffer(c.cfg.ReadBuffer); err != nil {
			c.obs.LogWarn("udp_read_buffer", ports.Field{Key: "error", Value: err.Error()})
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancel = cancel
	c.started = true

	c.obs.LogInfo("leader_subscribed",
		ports.Field{Key: "address", Value: conn.LocalAddr().String()},
		ports.Field{Key: "topic", Value: c.cfg.Topic})

	c.wg.Add(1)
	go c.consume(ctx, conn, out)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel, conn := c.cancel, c.conn
	c.started = false
	c.cancel = nil
	c.conn = nil
	c.mu.Unlock()

	cancel()
	err := conn.Close()
	c.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (c *Collector) consume(ctx context.Context, conn net.PacketConn, out chan<- *domain.JointState) {
	defer c.wg.Done()

	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			c.obs.LogError("udp_read_failed", err)
			continue
		}

		msg, err := c.codec.Decode(buf[:n])
		if err != nil {
			if errors.Is(err, codec.ErrTopicMismatch) {
				continue
			}
			c.obs.IncCounter(ports.MetricDecodeErrors, 1)
			c.obs.LogError("decode_failed", err)
			continue
		}

		state := msg.State
		select {
		case <-ctx.Done():
			return
		case out <- &state:
		}
	}
}

var _ ports.Collector = (*Collector)(nil)
