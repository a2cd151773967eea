package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/loopkit/loopkit/internal/doctor"
	"github.com/loopkit/loopkit/internal/doctor/config"
)

func main() {
	c, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if c.PrintVersion {
		doctor.PrintVersion()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := doctor.Run(ctx, c); err != nil {
		log.Fatal(err)
	}
}
