package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/phuslu/log"

	"github.com/a3tai/mcp-pdf-filler/internal/config"
	"github.com/a3tai/mcp-pdf-filler/internal/logging"
	"github.com/a3tai/mcp-pdf-filler/internal/mcp"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging builds the process logger for the configured mode
func setupLogging(cfg *config.Config) *log.Logger {
	return logging.ForMode(cfg.LogLevel, cfg.IsStdioMode())
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, logger *log.Logger) int {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		if err := <-serverErrCh; err != nil {
			logger.Error().Err(err).Msg("server shutdown with error")
			return 1
		}

	case err := <-serverErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
			return 1
		}
	}

	logger.Info().Msg("server stopped successfully")
	return 0
}

// runStdioMode handles stdio mode execution. The parent process controls
// the lifecycle: the server returns when stdin closes.
func runStdioMode(ctx context.Context, server *mcp.Server, logger *log.Logger) int {
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server error")
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}

func run() int {
	if versionRequested(os.Args[1:]) {
		printVersion()
		return 0
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger := setupLogging(cfg)

	if version != "dev" {
		cfg.Version = version
	}

	logger.Debug().Str("config", cfg.String()).Msg("starting")

	pdfService, err := pdf.NewService(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create PDF service")
		return 1
	}

	server, err := mcp.NewServer(cfg, pdfService, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create MCP server")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		return runServerMode(ctx, cancel, server, logger)
	}
	return runStdioMode(ctx, server, logger)
}

// versionRequested reports whether args ask for the version.
func versionRequested(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP PDF Filler\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
