package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"tradezone-dashboard/internal/app"
	"tradezone-dashboard/internal/config"
	"tradezone-dashboard/internal/logger"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file.
	output := cfg.Logger.Output
	if output == "" || output == "stderr" || output == "stdout" {
		output = "dashboard.log"
	}
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize dashboard", zap.Error(err))
		fmt.Fprintf(os.Stderr, "could not initialize dashboard: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	go a.Engine.Run(ctx)

	p := tea.NewProgram(newModel(ctx, cancel, a.Engine, log), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	log.Info("Dashboard has been shut down.")
}
