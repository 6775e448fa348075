package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/larkmd/larkmd/internal/config"
	"github.com/larkmd/larkmd/internal/lark"
	"github.com/larkmd/larkmd/internal/sync"
)

var clearCmd = &cobra.Command{
	Use:   "clear <url>",
	Short: "Delete all content of a document",
	Long: `Clear resets the document title and deletes every child of the
document root. Deletion runs as one bulk range call, falling back to
sub-batches when the service rejects the range.`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func init() {
	clearCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	clearCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func runClear(cmd *cobra.Command, args []string) error {
	logger := setupLogger(nil, verbose)
	ctx, cancel := setupSignalHandler(logger)
	defer cancel()

	docURL := args[0]
	token, err := lark.ParseDocURL(docURL)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	deleted, err := sync.NewClearer(client, logger).Clear(ctx, token)
	if err != nil {
		return reportAPIError(logger, err)
	}

	logger.Info("document cleared", "blocks", deleted)

	return printResult(sync.Result{
		DocURL:        docURL,
		Action:        sync.ActionClear,
		BlocksDeleted: sync.Count(deleted),
		Status:        "success",
	})
}
