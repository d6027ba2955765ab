// Command castplay plays an asciicast recording to the terminal.
//
//	castplay demo.cast
//	castplay https://example.com/demo.cast
//
// Playback options come from the environment (or .env): IDLE_TIME_LIMIT,
// START_AT, LOOP, MIN_FRAME_TIME, FETCH_TIMEOUT, LOG_LEVEL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"castplay/internal/platform/config"
	"castplay/internal/platform/logger"
	"castplay/internal/playback"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "castplay:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = config.Load()

	if len(os.Args) != 2 {
		return fmt.Errorf("usage: %s <file|url>", os.Args[0])
	}
	arg := os.Args[1]

	log := logger.NewWithWriter(os.Stderr, config.GetEnv("LOG_LEVEL", "warn"), "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := sourceFor(arg)
	if err != nil {
		return err
	}

	ended := make(chan struct{}, 1)
	engine := playback.NewEngine(src, playback.Options{
		IdleTimeLimit: config.GetEnvFloat("IDLE_TIME_LIMIT", 0),
		StartAt:       config.GetEnvFloat("START_AT", 0),
		Loop:          config.GetEnvInt("LOOP", 0),
		MinFrameTime:  config.GetEnvFloat("MIN_FRAME_TIME", playback.DefaultMinFrameTime),
		Feed: func(data string) {
			os.Stdout.WriteString(data)
		},
		OnState: func(state string, _ map[string]any) {
			if state == playback.StateStopped {
				select {
				case ended <- struct{}{}:
				default:
				}
			}
		},
		Logger: log,
	})

	initCtx := ctx
	if d := config.GetEnvDuration("FETCH_TIMEOUT", 0); d > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	info, err := engine.Init(initCtx)
	if err != nil {
		return err
	}
	log.Info("playing", "cols", info.Cols, "rows", info.Rows, "duration", info.Duration)

	engine.Play()

	select {
	case <-ended:
	case <-ctx.Done():
		engine.Stop()
		log.Info("interrupted", "at", engine.CurrentTime())
	}
	fmt.Fprintln(os.Stdout)
	return nil
}

func sourceFor(arg string) (playback.Source, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return playback.Location{URL: arg}, nil
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return nil, err
	}
	return playback.Data(string(b)), nil
}
