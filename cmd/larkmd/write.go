package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/larkmd/larkmd/internal/config"
	"github.com/larkmd/larkmd/internal/lark"
	"github.com/larkmd/larkmd/internal/sync"
	"github.com/larkmd/larkmd/internal/transform"
	"github.com/larkmd/larkmd/internal/tui"
)

var (
	writeFile    string
	writeReplace bool
)

var writeCmd = &cobra.Command{
	Use:   "write <url>",
	Short: "Write markdown to a document",
	Long: `Write compiles markdown into blocks and uploads them to the
document in rate-limited batches.

A leading "# " line becomes the document title. With --replace the
document is cleared first; otherwise the content lands after whatever
the document already holds.

When running in a terminal, a TUI progress display is shown by default.
Use --quiet to disable the TUI and show plain log output instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	writeCmd.Flags().StringVarP(&writeFile, "file", "f", "-", "markdown source file, - for stdin")
	writeCmd.Flags().BoolVar(&writeReplace, "replace", false, "clear the document before writing")
	writeCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	writeCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable TUI, use plain log output")
}

func runWrite(cmd *cobra.Command, args []string) error {
	return runUpload(args[0], writeFile, transform.ModeWrite, writeReplace, sync.ActionWrite)
}

// runUpload is the shared write/append pipeline: load source, compile,
// optionally clear, set the title on full writes, upload, print the result.
func runUpload(docURL, sourcePath string, mode transform.CompileMode, replace bool, action string) error {
	tuiMode := useTUI()
	logger := setupLogger(logOutput(tuiMode), verbose)
	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	token, err := lark.ParseDocURL(docURL)
	if err != nil {
		return err
	}

	source, err := loadSource(sourcePath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("source content is empty")
	}

	compiled := transform.Compile(source, mode)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	var progress sync.Progress = sync.NopProgress{}
	var runner *tui.Runner
	if tuiMode {
		runner = tui.NewRunner(fmt.Sprintf("larkmd %s", action))
		if err := runner.Start(); err != nil {
			return fmt.Errorf("starting TUI: %w", err)
		}
		progress = runner
	}

	stats, err := doUpload(ctx, client, cfg, logger, progress, token, replace, compiled)

	if runner != nil {
		runner.Done(err)
		runner.Wait()
	}
	if err != nil {
		return reportAPIError(logger, err)
	}

	logger.Info("upload complete", "blocks", stats.BlocksAdded, "batches", stats.Batches)

	return printResult(sync.Result{
		DocURL:      docURL,
		Action:      action,
		BlocksAdded: sync.Count(stats.BlocksAdded),
		Batches:     sync.Count(stats.Batches),
		Status:      "success",
	})
}

func doUpload(
	ctx context.Context,
	client *lark.Client,
	cfg *config.Config,
	logger *slog.Logger,
	progress sync.Progress,
	token string,
	replace bool,
	compiled transform.CompileResult,
) (sync.UploadStats, error) {
	if replace {
		deleted, err := sync.NewClearer(client, logger).Clear(ctx, token)
		if err != nil {
			return sync.UploadStats{}, fmt.Errorf("clearing document: %w", err)
		}
		logger.Info("cleared document", "blocks", deleted)
	}

	if compiled.HasTitle {
		if err := client.UpdateTitle(ctx, token, compiled.Title); err != nil {
			return sync.UploadStats{}, fmt.Errorf("setting title: %w", err)
		}
		logger.Debug("title set", "title", compiled.Title)
	}

	uploader := sync.NewUploader(client, cfg.Upload.BatchSize, cfg.Upload.Concurrency, logger, progress)
	return uploader.Upload(ctx, token, compiled.Blocks)
}
