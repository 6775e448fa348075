package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/larkmd/larkmd/internal/config"
	"github.com/larkmd/larkmd/internal/lark"
	"github.com/larkmd/larkmd/internal/sync"
)

var readOutFile string

var readCmd = &cobra.Command{
	Use:   "read <url>",
	Short: "Read a document as markdown",
	Long: `Read fetches a document and prints a JSON record holding its
markdown rendering, the service's raw text extraction, and the block count.

The rendering is lossy on purpose: tables, images, and other container
blocks surface as placeholder tokens.`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	readCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	readCmd.Flags().StringVarP(&readOutFile, "out", "o", "", "also write the markdown to this file")
}

func runRead(cmd *cobra.Command, args []string) error {
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

	out, err := sync.NewReader(client, logger).Read(ctx, token)
	if err != nil {
		return reportAPIError(logger, err)
	}

	if readOutFile != "" {
		if err := writeMarkdownFile(readOutFile, out.Markdown); err != nil {
			return err
		}
		logger.Info("wrote markdown", "path", readOutFile)
	}

	return printResult(sync.Result{
		DocURL:     docURL,
		Action:     sync.ActionRead,
		BlockCount: sync.Count(out.BlockCount),
		Markdown:   out.Markdown,
		RawContent: out.RawContent,
		Status:     "success",
	})
}

func writeMarkdownFile(path, markdown string) error {
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("writing markdown file: %w", err)
	}
	return nil
}
