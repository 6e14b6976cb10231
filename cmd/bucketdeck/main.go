package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	// Explicitly import provider implementations to ensure their init() functions run and they register themselves
	_ "bucketdeck/internal/provider"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
