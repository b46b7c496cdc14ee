package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"taskboard/internal/client"
	"taskboard/internal/config"
	"taskboard/internal/events"
	"taskboard/internal/logger"
	"taskboard/internal/tui"
)

const resubscribeDelay = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logPath := filepath.Join(os.TempDir(), "tasks-tui.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger.Init("tasks-tui", cfg.LogLevel, cfg.LogFormat)
	logger.SetOutput(logFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := client.New(cfg.APIURL)
	state := client.NewState(api)

	var feed chan events.Event
	if cfg.Watch {
		feed = make(chan events.Event, 16)
		go watch(ctx, api, feed)
	}

	logger.Info(ctx, "starting", "api", cfg.APIURL, "watch", cfg.Watch)
	if err := tui.Run(state, feed); err != nil {
		logger.Error(ctx, err, "ui exited")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// watch keeps a change feed subscription open, reconnecting until ctx ends.
func watch(ctx context.Context, api *client.Client, feed chan<- events.Event) {
	for {
		err := api.Subscribe(ctx, func(ev events.Event) {
			select {
			case feed <- ev:
			case <-ctx.Done():
			}
		})
		if ctx.Err() != nil {
			return
		}
		logger.Warn(ctx, "change feed disconnected", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
	}
}
