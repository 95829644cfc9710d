package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/pflag"
)

var statsMetrics = []string{
	"robot_messages_received_total",
	"robot_messages_published_total",
	"robot_messages_blocked_total",
	"robot_decode_errors_total",
	"robot_queue_dropped_total",
	"robot_queue_length",
	"robot_block_ratio",
}

func statsCommand(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	once := fs.Bool("once", false, "Print one snapshot and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := &http.Client{Timeout: *interval}
	if *once {
		return printMetricsSnapshot(client, *url, out)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Fprintf(out, "Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(client, *url, out); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(client *http.Client, url string, out io.Writer) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := parseSnapshot(resp.Body)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[%s] received=%.0f published=%.0f blocked=%.0f (%.1f%%) decode_errors=%.0f dropped=%.0f queue=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["robot_messages_received_total"],
		values["robot_messages_published_total"],
		values["robot_messages_blocked_total"],
		100*values["robot_block_ratio"],
		values["robot_decode_errors_total"],
		values["robot_queue_dropped_total"],
		values["robot_queue_length"],
	)
	return nil
}

// parseSnapshot reads the text exposition format and returns the robot_* counters and gauges.
// Missing series read as zero.
func parseSnapshot(r io.Reader) (map[string]float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, fmt.Errorf("parse metrics: %w", err)
	}

	values := make(map[string]float64, len(statsMetrics))
	for _, name := range statsMetrics {
		mf, ok := families[name]
		if !ok {
			values[name] = 0
			continue
		}
		values[name] = sumFamily(mf)
	}
	return values, nil
}

func sumFamily(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		switch mf.GetType() {
		case dto.MetricType_COUNTER:
			total += m.GetCounter().GetValue()
		case dto.MetricType_GAUGE:
			total += m.GetGauge().GetValue()
		case dto.MetricType_UNTYPED:
			total += m.GetUntyped().GetValue()
		}
	}
	return total
}
