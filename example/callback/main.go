package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/Servo7/robot-comm/pkg/robotcomm"
)

// Drives the master from an in-process leader and prints what the follower would receive.
func main() {
	flow, err := robotcomm.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	leader := robotcomm.NewPushCollector()
	go sweep(ctx, leader)

	callback := func(batch []robotcomm.JointState) error {
		for _, s := range batch {
			fmt.Println(s)
		}
		return nil
	}

	err = flow.StreamIN(robotcomm.StreamInCollector(leader)).
		Run(ctx, robotcomm.StreamOutCallback("stdout", callback))
	if err != nil && err != context.Canceled {
		log.Fatalf("master error: %v", err)
	}
}

// sweep swings joint_1 past its limit so some states are blocked.
func sweep(ctx context.Context, leader *robotcomm.PushCollector) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		phase := time.Since(start).Seconds()
		joints := []float64{0, 2 * math.Sin(phase), 0.5, 0, 0, 0}
		if err := leader.PublishJoints(ctx, joints, 0.5+0.5*math.Cos(phase)); err != nil && ctx.Err() == nil {
			log.Printf("publish: %v", err)
		}
	}
}
