package main

import (
	"github.com/spf13/cobra"

	"github.com/larkmd/larkmd/internal/sync"
	"github.com/larkmd/larkmd/internal/transform"
)

var appendFile string

var appendCmd = &cobra.Command{
	Use:   "append <url>",
	Short: "Append markdown to a document",
	Long: `Append compiles markdown into blocks and adds them after the
document's existing content.

Unlike write, a leading "# " line stays a content block (rendered bold)
instead of retitling the document.`,
	Args: cobra.ExactArgs(1),
	RunE: runAppend,
}

func init() {
	appendCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	appendCmd.Flags().StringVarP(&appendFile, "file", "f", "-", "markdown source file, - for stdin")
	appendCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	appendCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable TUI, use plain log output")
}

func runAppend(cmd *cobra.Command, args []string) error {
	return runUpload(args[0], appendFile, transform.ModeAppend, false, sync.ActionAppend)
}
