package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"goa.design/clue/log"

	"erp-mcp-server/internal/application"
	"erp-mcp-server/internal/domain"
	"erp-mcp-server/internal/infrastructure"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logs")
	flag.Parse()

	// Load configuration
	config, err := domain.LoadConfig(*configPath)
	if err != nil {
		ctx := domain.NewLogContext(domain.LoggingConfig{}, os.Stderr)
		log.Fatalf(ctx, err, "failed to load configuration from %s", *configPath)
	}

	if *debug {
		config.Logging.Debug = true
	}
	// Logs go to stderr; stdout carries the stdio transport.
	ctx := domain.NewLogContext(config.Logging, os.Stderr)
	logger := domain.NewClueLogger(ctx)
	logger.Info(ctx, "configuration loaded", "path", *configPath, "transport", config.Transport.Type)

	server, err := buildServer(ctx, config, logger)
	if err != nil {
		log.Fatalf(ctx, err, "failed to build server")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info(ctx, "shutting down", "signal", sig.String())
		cancel()
	case err := <-errChan:
		logger.Error(ctx, err, "server error")
		cancel()
		if err := server.Close(); err != nil {
			logger.Error(ctx, err, "error closing server")
		}
		os.Exit(1)
	}

	if err := server.Close(); err != nil {
		logger.Error(ctx, err, "error during server shutdown")
		os.Exit(1)
	}

	logger.Info(ctx, "server shutdown complete")
}

// buildServer wires the backend client, handlers, router and transport.
func buildServer(ctx context.Context, config *domain.Config, logger domain.Logger) (*application.Server, error) {
	client := infrastructure.NewERPClient(config.Backend, logger)

	var saver application.ContentSaver
	if config.Content.PersistEnabled() {
		saver = infrastructure.NewContentStore(config.Content, logger)
	}

	deps := application.ToolDeps{
		Backend: config.Backend,
		Mapper:  domain.NewResponseMapper(),
		Logger:  logger,
	}

	logs, err := application.NewDataManagerHandler(client, deps)
	if err != nil {
		return nil, err
	}
	content, err := application.NewContentHandler(application.NewContentResolver(client, saver, logger), deps)
	if err != nil {
		return nil, err
	}
	orders, err := application.NewOrderHandler(client, deps)
	if err != nil {
		return nil, err
	}

	router, err := application.NewRequestRouter(logs, content, orders)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "request router initialized", "tools", len(router.ListAllTools()))

	var transport domain.Transport
	switch config.Transport.Type {
	case "stdio":
		transport = domain.NewStdioTransport()
	case "http":
		transport = domain.NewHTTPTransport(config.Transport.HTTP.Host, config.Transport.HTTP.Port, logger)
	default:
		return nil, fmt.Errorf("invalid transport type: %s", config.Transport.Type)
	}

	return application.NewServer(transport, router, config, logger), nil
}
