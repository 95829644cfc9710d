package pipeline

import (
	"context"
	"time"

	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

// DefaultReportEvery is how many received messages separate two stats reports.
const DefaultReportEvery = 100

// Relay drains the queue through the coordinator, fans forwarded states out
// to the sinks and hands blocked ones to the audit log.
type Relay struct {
	Queue       ports.StateQueue
	Coordinator *Coordinator
	Sinks       []ports.Sink
	Audit       ports.AuditLog // optional
	Policy      ports.Policy
	Obs         ports.Observability
	ReportEvery int

	// Now is the clock used for message age; time.Now when nil.
	Now func() time.Time
}

// Run processes batches until ctx is done, then drains whatever is still
// queued and logs a final report.
func (r *Relay) Run(ctx context.Context) error {
	sleep := r.Policy.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ctx.Err() != nil {
			for r.step() > 0 {
			}
			r.Report("stats_final")
			return nil
		}
		if r.step() == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(sleep):
			}
		}
	}
}

// step handles one batch and returns its size.
func (r *Relay) step() int {
	batch := r.Queue.DequeueBatch(r.Policy.MaxBatchSize)
	if len(batch) == 0 {
		return 0
	}

	var (
		out    = make([]*domain.JointState, 0, len(batch))
		events []ports.BlockedEvent
	)

	start := time.Now()
	for _, item := range batch {
		if item.State == nil {
			continue
		}
		res := r.Coordinator.Process(*item.State)
		r.Obs.IncCounter(ports.MetricReceived, 1)

		switch res := res.(type) {
		case Forwarded:
			s := res.State
			out = append(out, &s)
			r.Obs.IncCounter(ports.MetricPublished, 1)
		case Blocked:
			r.Obs.RecordBlocked(&res.Transformed, res.Violations)
			events = append(events, ports.BlockedEvent{
				Source:      *item.State,
				Transformed: res.Transformed,
				Violations:  res.Violations,
				ReceivedAt:  domain.NowSeconds(),
			})
		}

		if every := r.reportEvery(); r.Coordinator.Stats().Received%uint64(every) == 0 {
			r.Report("stats_report")
		}
	}
	r.Obs.ObserveLatency(ports.MetricProcessLatency, time.Since(start).Seconds())

	if len(out) > 0 {
		for _, sink := range r.Sinks {
			if err := sink.WriteBatch(out); err != nil {
				r.Obs.IncCounter(ports.MetricSinkErrors, 1)
				r.Obs.LogError("sink_write_failed", err, ports.Field{Key: "sink", Value: sink.Name()})
			}
		}
		now := r.now()
		for _, s := range out {
			r.Obs.ObserveLatency(ports.MetricMessageAge, now.Sub(s.Time()).Seconds())
		}
	}

	if len(events) > 0 && r.Audit != nil {
		if err := r.Audit.RecordBlocked(events); err != nil {
			r.Obs.IncCounter(ports.MetricSinkErrors, 1)
			r.Obs.LogError("audit_write_failed", err, ports.Field{Key: "events", Value: len(events)})
		}
	}

	r.Obs.SetGauge(ports.MetricQueueLength, float64(r.Queue.Len()))
	r.Obs.SetGauge(ports.MetricBlockRatio, r.Coordinator.Stats().BlockRatio())
	return len(batch)
}

// Report logs the coordinator counters under msg.
func (r *Relay) Report(msg string) {
	st := r.Coordinator.Stats()
	r.Obs.LogInfo(msg,
		ports.Field{Key: "received", Value: st.Received},
		ports.Field{Key: "published", Value: st.Published},
		ports.Field{Key: "blocked", Value: st.Blocked},
		ports.Field{Key: "block_pct", Value: st.BlockPercent()},
	)
}

func (r *Relay) reportEvery() int {
	if r.ReportEvery <= 0 {
		return DefaultReportEvery
	}
	return r.ReportEvery
}

func (r *Relay) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
