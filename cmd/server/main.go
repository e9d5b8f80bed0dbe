package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"praxus/internal/daemon"
)

func main() {
	configPath := flag.String("config", envOr("PRAXUS_CONFIG", "praxus.yaml"), "path to the config file")
	logLevel := flag.String("log-level", "", "override logging.level")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := daemon.Run(ctx, daemon.Options{ConfigPath: *configPath, LogLevel: *logLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "praxus-server: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
