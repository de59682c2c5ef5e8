package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-transcribe/internal/bus"
	"github.com/loqalabs/loqa-transcribe/internal/config"
	"github.com/loqalabs/loqa-transcribe/internal/history"
	"github.com/loqalabs/loqa-transcribe/internal/protocol"
	"github.com/loqalabs/loqa-transcribe/internal/stt"
	"github.com/loqalabs/loqa-transcribe/internal/telemetry"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("loqa-transcribe", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		modelPath   = fs.String("model", "", "Path to the acoustic model")
		inputPath   = fs.String("input", "", "Path to the mono WAV file to transcribe")
		configPath  = fs.String("config", "", "Path to configuration file (optional)")
		showVersion = fs.Bool("version", false, "Print version and exit")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}
	if *modelPath == "" || *inputPath == "" {
		fmt.Fprintln(stderr, "both --model and --input are required")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	cfg.Engine.ModelPath = *modelPath

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Telemetry.LogLevel)}))

	ctx := context.Background()

	if cfg.Telemetry.TraceEnabled {
		shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, stderr, logger)
		if err != nil {
			logger.Warn("failed to setup telemetry", slog.String("error", err.Error()))
		} else {
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					logger.Warn("telemetry shutdown error", slog.String("error", err.Error()))
				}
			}()
		}
	}

	factory, err := stt.NewEngineFactory(cfg.Engine)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	var span trace.Span
	if cfg.Telemetry.TraceEnabled {
		ctx, span = otel.Tracer("loqa-transcribe").Start(ctx, "transcribe",
			trace.WithAttributes(
				attribute.String("audio.input", *inputPath),
				attribute.String("engine.mode", cfg.Engine.Mode),
			))
	}

	transcriber := stt.NewTranscriber(factory, cfg.Engine.ChunkFrames, logger)
	start := time.Now()
	text, err := transcriber.TranscribeFile(ctx, *inputPath)
	elapsed := time.Since(start)

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}

	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	fmt.Fprint(stdout, text)
	logger.Info("transcription complete",
		slog.String("input", *inputPath),
		slog.Int("chars", len(text)),
		slog.Duration("elapsed", elapsed))

	recordRun(ctx, cfg, logger, *inputPath, text, elapsed)
	publishTranscript(cfg, logger, *inputPath, text, elapsed)

	return 0
}

// recordRun appends the run to the local history store when one is
// configured. Failures are logged; the transcript already reached
// stdout, so they do not change the exit code.
func recordRun(ctx context.Context, cfg config.Config, logger *slog.Logger, input, text string, elapsed time.Duration) {
	if cfg.History.Path == "" {
		return
	}
	store, err := history.Open(ctx, cfg.History, logger)
	if err != nil {
		logger.Warn("failed to open history store", slog.String("error", err.Error()))
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close history store", slog.String("error", err.Error()))
		}
	}()

	run := history.Run{
		Input:      input,
		Engine:     cfg.Engine.Mode,
		Transcript: text,
		DurationMS: elapsed.Milliseconds(),
	}
	if err := store.Record(ctx, run); err != nil {
		logger.Warn("failed to record run", slog.String("error", err.Error()))
	}
}

// publishTranscript broadcasts the final transcript on the bus when
// publishing is enabled. Failures are logged, not fatal.
func publishTranscript(cfg config.Config, logger *slog.Logger, input, text string, elapsed time.Duration) {
	if !cfg.Bus.Enabled {
		return
	}
	publisher, err := bus.Connect(cfg.Bus, logger)
	if err != nil {
		logger.Warn("failed to connect to bus", slog.String("error", err.Error()))
		return
	}
	defer publisher.Close()

	msg := protocol.Transcript{
		Source:     input,
		Engine:     cfg.Engine.Mode,
		Text:       text,
		DurationMS: elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if err := publisher.PublishTranscript(msg); err != nil {
		logger.Warn("failed to publish transcript", slog.String("error", err.Error()))
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
