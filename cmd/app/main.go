package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pollhub/pkg/config"
	"pollhub/pkg/identity"
	"pollhub/pkg/utils"
)

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	debug      = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := utils.DefaultLogConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Debug = *debug
	logger, err := utils.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := NewApp(cfg, logger)

	// Identity resolution is delegated to the service boundary; the
	// standalone binary runs with a fixed admin user.
	users := &identity.StaticResolver{
		Current: identity.Identity{UserID: "admin", IsAdmin: true, Authenticated: true},
		Users: map[string]identity.Identity{
			"admin": {UserID: "admin", IsAdmin: true, Authenticated: true},
		},
	}

	if err := app.Start(ctx, users); err != nil {
		logger.Fatal("Failed to start application", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	app.Stop()
}
