package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	workerStaggerDelay = 50 * time.Millisecond
	engineLogFile      = "engine.log"
)

var (
	strategy    Strategy
	target      string
	tokenCount  = 1
	workerCount = 1
)

// zapLogger adapts a zap SugaredLogger to the package Logger interface.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (z *zapLogger) Log(format string, args ...any) {
	z.sugar.Infof(format, args...)
}

func main() {
	parseArgs()

	engineLog, flush := setupLogging()

	_ = godotenv.Load()

	exitCode := run(engineLog)
	flush()
	os.Exit(exitCode)
}

func parseArgs() {
	const usage = "Usage: recap <handshake|browser|service> <url> [count] [workers]\nExamples:\n  recap handshake 'https://www.google.com/recaptcha/api2/anchor?ar=1&k=...&co=...&hl=en&v=...&size=invisible&cb=...'\n  recap browser https://example.com/form 5 2"
	if len(os.Args) < 3 {
		log.Fatal(usage)
	}

	var err error
	if strategy, err = ParseStrategy(os.Args[1]); err != nil {
		log.Fatalf("%v\n%s", err, usage)
	}
	target = os.Args[2]

	if len(os.Args) > 3 {
		tokenCount, err = strconv.Atoi(os.Args[3])
		if err != nil || tokenCount <= 0 {
			log.Fatal("count must be a positive integer")
		}
	}
	if len(os.Args) > 4 {
		workerCount, err = strconv.Atoi(os.Args[4])
		if err != nil || workerCount <= 0 {
			log.Fatal("workers must be a positive integer")
		}
	}
}

// setupLogging tees structured logs to stderr and engine.log. Stdout is
// reserved for tokens.
func setupLogging() (*zap.SugaredLogger, func()) {
	file, err := os.OpenFile(engineLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("Failed to open engine log file: %v", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), level),
	)
	logger := zap.New(core)

	return logger.Sugar(), func() {
		_ = logger.Sync()
		_ = file.Close()
	}
}

func run(engineLog *zap.SugaredLogger) int {
	cfg := LoadConfig()

	proxies, err := LoadProxyPool(cfg.ProxyFile)
	if err != nil {
		engineLog.Errorf("Failed to load proxies: %v", err)
		return 1
	}
	if strategy == StrategyHandshake {
		engineLog.Infof("Loaded %d proxies", proxies.Count())
	}

	factory, err := newSolverFactory(strategy, target, cfg, proxies)
	if err != nil {
		engineLog.Errorf("Configuration error: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	scheduler := NewScheduler(workerCount, factory, workerStaggerDelay, &zapLogger{sugar: engineLog})
	engineLog.Infof("Starting %d workers (strategy: %s, tokens: %d)...", workerCount, strategy, tokenCount)
	scheduler.Start(ctx)

	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for range tokenCount {
			if !scheduler.Submit(ctx) {
				return
			}
		}
	}()

	var successCount, failureCount int
	var fatalErr error

collect:
	for received := 0; received < tokenCount; received++ {
		select {
		case result := <-scheduler.Results():
			if result.Fatal {
				fatalErr = result.Error
				break collect
			}
			if result.Success() {
				successCount++
				fmt.Println(result.Token)
				continue
			}
			failureCount++
			engineLog.Warnw("token acquisition failed",
				"worker", result.Worker,
				"kind", KindOf(result.Error).String(),
				"retryable", IsRetryableError(result.Error),
				"error", result.Error)
		case <-scheduler.Done():
			if err := scheduler.Err(); err != nil {
				fatalErr = err
			} else {
				engineLog.Warn("Interrupted")
			}
			break collect
		}
	}

	stop()
	<-submitted
	scheduler.Close()

	if fatalErr != nil {
		engineLog.Errorf("=== ABORTED: %d tokens, %d failures (fatal error: %v) ===", successCount, failureCount, fatalErr)
		return 1
	}

	engineLog.Infof("=== Complete: %d tokens, %d failures ===", successCount, failureCount)
	if successCount == 0 {
		return 1
	}
	return 0
}
