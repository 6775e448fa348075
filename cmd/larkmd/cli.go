package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/larkmd/larkmd/internal/auth"
	"github.com/larkmd/larkmd/internal/config"
	"github.com/larkmd/larkmd/internal/lark"
)

// Shared flag variables for all commands.
var (
	configPath string
	verbose    bool
	quiet      bool // quiet disables TUI and shows plain log output
)

// setupLogger creates and sets the default logger.
// If output is nil, logs go to stderr.
func setupLogger(output io.Writer, verbose bool) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(tint.NewHandler(output, &tint.Options{
		Level: level,
	}))
	slog.SetDefault(logger)

	return logger
}

// setupSignalHandler creates a context that cancels on SIGINT/SIGTERM.
// The returned cancel function should be deferred.
func setupSignalHandler(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("received shutdown signal, canceling...")
		cancel()
	}()

	return ctx, cancel
}

// useTUI reports whether the progress TUI should run: stdout is a terminal
// and quiet mode is off.
func useTUI() bool {
	return !quiet && term.IsTerminal(int(os.Stdout.Fd()))
}

// logOutput picks where logs go. In TUI mode they are discarded unless
// verbose, so the display stays clean.
func logOutput(tui bool) io.Writer {
	if tui && !verbose {
		return io.Discard
	}
	return os.Stderr
}

// newClient wires the token manager and the API client from config.
func newClient(cfg *config.Config, logger *slog.Logger) (*lark.Client, error) {
	manager, err := auth.NewManager(cfg.Auth.TokenFile, cfg.API.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("loading token cache: %w", err)
	}
	manager.SetAppCredentials(cfg.AppID, cfg.AppSecret)

	return lark.NewClient(cfg.API.BaseURL, manager, logger), nil
}

// loadSource reads write input: a file path, or stdin when the path is "-".
func loadSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading source file: %w", err)
	}
	return string(data), nil
}

// printResult writes the command's JSON output record to stdout.
func printResult(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportAPIError logs the remediation hint for typed API failures so the
// user knows what to fix, then returns err unchanged.
func reportAPIError(logger *slog.Logger, err error) error {
	var apiErr *lark.APIError
	if errors.As(err, &apiErr) {
		if hint := apiErr.Hint(); hint != "" {
			logger.Error("operation failed", "code", apiErr.Code, "hint", hint)
		}
	}
	return err
}
