package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"eve-nerd/internal/logger"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !jsonRequested(os.Args[1:]) {
		logger.Banner(version)
	}
	if err := executeContext(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		logger.Error("CLI", fmt.Sprint(err))
		os.Exit(1)
	}
}

// jsonRequested keeps the banner out of machine-readable output.
func jsonRequested(args []string) bool {
	for _, a := range args {
		if a == "--json" || a == "--json=true" {
			return true
		}
	}
	return false
}
