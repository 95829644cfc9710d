package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Servo7/robot-comm"
	"github.com/Servo7/robot-comm/internal/codec"
	"github.com/Servo7/robot-comm/internal/domain"
)

const defaultConfigPath = "./data/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:], os.Stdout)
	case "check":
		err = checkCommand(os.Args[2:], os.Stdin, os.Stdout)
	case "stats":
		err = statsCommand(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		printUsage(os.Stderr)
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("robot-master %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", defaultConfigPath, "Path to master configuration file")
	noLimits := fs.Bool("no-limits", false, "Forward every message without limit checks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var opts []robotcomm.FlowOption
	if *noLimits {
		opts = append(opts, robotcomm.WithoutLimits())
	}
	flow, err := robotcomm.Conf(*cfgPath, opts...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func validateCommand(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", defaultConfigPath, "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := robotcomm.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "config %s looks good\n", *cfgPath)
	for _, w := range robotcomm.NewCoordinator(cfg).Warnings() {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}

type checkReport struct {
	Verdict    string        `json:"verdict"`
	Input      domain.Record `json:"input"`
	Output     domain.Record `json:"output"`
	Violations []string      `json:"violations,omitempty"`
}

// checkCommand runs one record through the configured pipeline and prints the verdict.
func checkCommand(args []string, in io.Reader, out io.Writer) error {
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", "", "Path to configuration file (defaults when empty)")
	record := fs.StringP("record", "r", "", "JSON record to check; read from stdin when empty")
	noLimits := fs.Bool("no-limits", false, "Skip limit checks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := robotcomm.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = robotcomm.LoadConfig(*cfgPath); err != nil {
			return err
		}
	}
	if *noLimits {
		cfg.JointLimits = nil
	}

	raw := []byte(*record)
	if len(strings.TrimSpace(*record)) == 0 {
		var err error
		if raw, err = io.ReadAll(in); err != nil {
			return fmt.Errorf("read record: %w", err)
		}
	}
	msg, err := codec.DecodePayload(codec.FormatJSON, raw)
	if err != nil {
		return err
	}

	report := checkReport{Input: msg.State.ToRecord()}
	switch res := robotcomm.NewCoordinator(cfg).Process(msg.State).(type) {
	case robotcomm.Forwarded:
		report.Verdict = "forwarded"
		report.Output = res.State.ToRecord()
	case robotcomm.Blocked:
		report.Verdict = "blocked"
		report.Output = res.Transformed.ToRecord()
		report.Violations = res.Violations
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `robot-master

Usage:
  robot-master <command> [flags]

Commands:
  run        Relay leader joint states to the follower using the provided config
  validate   Load and validate a config file without starting the master
  check      Run one JSON record through the transform and limits and print the verdict
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  robot-master run --config ./data/config.yaml
  robot-master run --config ./data/config.yaml --no-limits
  robot-master validate -c ./data/config.yaml
  robot-master check -c ./data/config.yaml -r '{"joint_0": 0.1, "joint_1": 0.8}'
  robot-master stats --url http://localhost:9100/metrics --interval 1s
`)
}
