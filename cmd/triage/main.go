// Command triage executes exactly one triage run and exits. Continuations
// after a time-limit stop are scheduled onto the queue for the worker to pick
// up, so the one-shot runner stays bounded.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/mailsift/mailsift/internal/app"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/logger"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for classifier API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			_ = syncErr
		}
	}()

	ctx := context.Background()

	application, err := app.Build(ctx, cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Fatal("Failed to build pipeline", zap.Error(err))
	}
	defer application.Close()

	summary, err := application.Orchestrator.Run(ctx)
	if err != nil {
		zapLogger.Fatal("Triage run failed", zap.Error(err))
	}

	fmt.Printf("Run finished: %s\n", summary.StopReason)
	fmt.Printf("  Processed: %d items in %d batches\n", summary.TotalProcessed, summary.Batches)
	fmt.Printf("  Most frequent sender: %s\n", summary.MostFrequentSender)
	fmt.Printf("  Daily API calls: %d\n", summary.FinalDailyCount)
}
