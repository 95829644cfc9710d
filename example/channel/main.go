package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/Servo7/robot-comm"
)

func main() {
	flow, err := robotcomm.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := robotcomm.NewChannelSink("fanout", 32)
	defer closeBatches()

	go fanoutWorker("follower", batches)

	// The UDP follower keeps running; the channel sink sees the same states.
	if err := flow.Run(ctx, robotcomm.StreamOutTee(sink)); err != nil && err != context.Canceled {
		log.Fatalf("master error: %v", err)
	}
}

func fanoutWorker(name string, batches <-chan []robotcomm.JointState) {
	for batch := range batches {
		last := batch[len(batch)-1]
		fmt.Printf("[%s] %d states, latest age %s\n", name, len(batch), last.Age())
	}
}
