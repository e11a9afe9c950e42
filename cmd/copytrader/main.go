// ====================================
// File: cmd/copytrader/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/copytrader/internal/bot"
	"github.com/openclaw/copytrader/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "path to configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logCfg := logger.DefaultConfig()
	logCfg.Development = *debug
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log.Info("Starting copy trader")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := bot.NewRunner(log)
	if err := runner.Initialize(ctx, *configPath); err != nil {
		log.Fatal("Failed to initialize", zap.Error(err))
	}

	runErr := runner.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	runner.Shutdown(shutdownCtx)

	if runErr != nil && runErr != context.Canceled {
		log.Error("Engine exited with error", zap.Error(runErr))
		os.Exit(1)
	}
}
