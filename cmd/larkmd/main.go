// Package main provides the entry point for the larkmd CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "larkmd",
	Short: "Markdown bridge for Lark/Feishu documents",
	Long: `larkmd reads and writes Lark/Feishu documents through a
Markdown-like plain-text representation.

Reads render the document's block tree to markdown; writes compile
markdown into blocks and upload them in rate-limited batches.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("larkmd version 0.1.0")
	},
}

func main() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
