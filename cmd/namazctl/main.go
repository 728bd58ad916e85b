package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"namaz/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.New().ExecuteContext(ctx); err != nil {
		_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
