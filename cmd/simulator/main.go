package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"iot-climate-monitor/internal/logging"
	"iot-climate-monitor/internal/simulator"
)

func main() {
	var (
		baseURL  = flag.String("url", getenvDefault("SIMULATOR_URL", "http://localhost:8080"), "API base url")
		device   = flag.String("device", getenvDefault("SIMULATOR_DEVICE", "ESP32-001"), "device code")
		interval = flag.Duration("interval", 5*time.Second, "delay between readings")
		count    = flag.Int("count", 0, "stop after this many readings (0 = run until interrupted)")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random source seed")
		secret   = flag.String("ingest-secret", os.Getenv("INGEST_HMAC_SECRET"), "HMAC secret for signed ingest")
	)
	flag.Parse()

	logger, err := logging.NewLogger(getenvDefault("LOG_LEVEL", "info"), getenvDefault("LOG_FORMAT", "console"), "climate-simulator")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	runner, err := simulator.NewRunner(*baseURL, *device, simulator.NewRandomWalk(*seed),
		simulator.WithInterval(*interval),
		simulator.WithMaxSends(*count),
		simulator.WithIngestSecret([]byte(*secret)),
		simulator.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("simulator init", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("simulator started",
		zap.String("url", *baseURL),
		zap.String("device_code", *device),
		zap.Duration("interval", *interval),
	)
	sent, _ := runner.Run(ctx)
	logger.Info("simulator stopped", zap.Int("sent", sent))
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
