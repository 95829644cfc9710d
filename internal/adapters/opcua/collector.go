package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

// Collector subscribes to one node per joint (plus an optional gripper node)
// on a leader's OPC UA server and emits a JointState per publish cycle.
type Collector struct {
	cfg    Config
	obs    ports.Observability
	client *opcua.Client
	sub    *opcua.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	started bool
}

func NewCollector(cfg Config, obs ports.Observability) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, errors.New("opcua collector: observability is required")
	}
	return &Collector{cfg: cfg, obs: obs}, nil
}

func (c *Collector) Start(out chan<- *domain.JointState) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("opcua collector already started")
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	client, err := opcua.NewClient(c.cfg.Endpoint, c.buildClientOptions()...)
	if err != nil {
		cancel()
		return fmt.Errorf("opcua new client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		cancel()
		return fmt.Errorf("opcua connect: %w", err)
	}

	fields := c.cfg.fields()
	notifyCh := make(chan *opcua.PublishNotificationData, len(fields)*4)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: c.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		cancel()
		_ = client.Close(ctx)
		return fmt.Errorf("opcua subscribe: %w", err)
	}

	reqs := make([]*ua.MonitoredItemCreateRequest, 0, len(fields))
	for i, f := range fields {
		nodeID, err := ua.ParseNodeID(f.nodeID)
		if err != nil {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("parse node id %q: %w", f.nodeID, err)
		}
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, uint32(i+1))
		if c.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(c.cfg.SamplingInterval / time.Millisecond)
		}
		reqs = append(reqs, req)
	}

	res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, reqs...)
	if err != nil {
		c.cleanupOnError(ctx, cancel, sub, client)
		return fmt.Errorf("monitor joint nodes: %w", err)
	}
	if len(res.Results) != len(reqs) {
		c.cleanupOnError(ctx, cancel, sub, client)
		return fmt.Errorf("monitor joint nodes: got %d results for %d nodes", len(res.Results), len(reqs))
	}
	for i, r := range res.Results {
		if r.StatusCode != ua.StatusOK {
			c.cleanupOnError(ctx, cancel, sub, client)
			return fmt.Errorf("monitor node %q failed: %s", fields[i].nodeID, r.StatusCode)
		}
	}

	c.mu.Lock()
	c.client = client
	c.sub = sub
	c.cancel = cancel
	c.started = true
	c.mu.Unlock()

	c.obs.LogInfo("leader_subscribed",
		ports.Field{Key: "endpoint", Value: c.cfg.Endpoint},
		ports.Field{Key: "nodes", Value: len(fields)})

	c.wg.Add(1)
	go c.consume(ctx, newAssembler(fields), notifyCh, out)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	sub := c.sub
	client := c.client
	c.started = false
	c.cancel = nil
	c.sub = nil
	c.client = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	var err error
	if sub != nil {
		if e := sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if client != nil {
		if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}

	c.wg.Wait()
	return err
}

func (c *Collector) consume(ctx context.Context, asm *assembler, ch <-chan *opcua.PublishNotificationData, out chan<- *domain.JointState) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				c.obs.LogError("opcua_notification_failed", notif.Error)
				continue
			}
			if !c.processNotification(ctx, asm, notif.Value, out) {
				return
			}
		}
	}
}

// processNotification returns false once ctx is done.
func (c *Collector) processNotification(ctx context.Context, asm *assembler, val any, out chan<- *domain.JointState) bool {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return true
	}

	changed, skipped := asm.apply(data)
	for _, id := range skipped {
		c.obs.IncCounter(ports.MetricDecodeErrors, 1)
		c.obs.LogWarn("opcua_value_skipped", ports.Field{Key: "node_id", Value: id})
	}
	if !changed || !asm.ready() {
		return true
	}

	s := asm.state()
	select {
	case <-ctx.Done():
		return false
	case out <- &s:
		return true
	}
}

func (c *Collector) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(c.cfg.SecurityPolicy)),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if c.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func (c *Collector) cleanupOnError(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription, client *opcua.Client) {
	cancel()
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if client != nil {
		_ = client.Close(ctx)
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.Collector = (*Collector)(nil)
