// ./main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/socialgenius/loginforge/cmd"
)

// main is the entry point for the loginforge application.
func main() {
	// Listen for interrupt signals so in-flight attempts drain gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
