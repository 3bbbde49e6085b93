// main package for the render-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/FatStinkyPanda/talk2me-render/internal/assetstore"
	"github.com/FatStinkyPanda/talk2me-render/internal/config"
	"github.com/FatStinkyPanda/talk2me-render/internal/export"
	"github.com/FatStinkyPanda/talk2me-render/internal/objectstore"
	"github.com/FatStinkyPanda/talk2me-render/internal/render"
	"github.com/FatStinkyPanda/talk2me-render/internal/synth"
	"github.com/FatStinkyPanda/talk2me-render/internal/worker"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "render-service-bootstrap.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

// serve wires the NATS connection, the object-store buckets, and the render
// pipeline, then runs the worker until the context is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsConnection, connectErr := nats.Connect(cfg.NATS.URL)
	if connectErr != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, connectErr)
	}

	defer natsConnection.Close()

	jetstreamContext, jetstreamErr := natsConnection.JetStream()
	if jetstreamErr != nil {
		return fmt.Errorf("failed to create JetStream context: %w", jetstreamErr)
	}

	scripts, scriptsErr := objectstore.New(jetstreamContext, cfg.NATS.ScriptObjectBucket)
	if scriptsErr != nil {
		return fmt.Errorf("failed to open script bucket: %w", scriptsErr)
	}

	assetBucket, assetsErr := objectstore.New(jetstreamContext, cfg.NATS.AssetObjectBucket)
	if assetsErr != nil {
		return fmt.Errorf("failed to open asset bucket: %w", assetsErr)
	}

	renders, rendersErr := objectstore.New(jetstreamContext, cfg.NATS.RenderObjectBucket)
	if rendersErr != nil {
		return fmt.Errorf("failed to open render bucket: %w", rendersErr)
	}

	engine, engineErr := synth.New(synth.Config{
		BinaryPath: cfg.Synth.BinaryPath,
		ModelPath:  cfg.Synth.ModelPath,
		SampleRate: cfg.Render.SampleRate,
	}, log)
	if engineErr != nil {
		return fmt.Errorf("failed to create synthesis engine: %w", engineErr)
	}

	pipeline := render.NewPipeline(
		assetstore.New(assetBucket),
		engine,
		export.New(cfg.Synth.FfmpegPath, log),
		cfg.Audio,
		cfg.Render,
		log,
	)

	renderWorker, workerErr := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.RenderRequestSubject,
		scripts,
		renders,
		pipeline,
		time.Duration(cfg.NATS.RenderTimeoutSeconds)*time.Second,
		log,
	)
	if workerErr != nil {
		return fmt.Errorf("failed to create worker: %w", workerErr)
	}

	log.System("Render service initialized. Listening for jobs on subject: %s", cfg.NATS.RenderRequestSubject)

	runErr := renderWorker.Run(ctx)
	if runErr != nil {
		return fmt.Errorf("worker stopped with error: %w", runErr)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
