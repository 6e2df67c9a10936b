package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "clinrag",
	Short: "Question answering over a clinician's document collection",
	Long: `clinrag ingests clinical documents (txt, markdown, docx, html, rtf and
more), anonymizes and indexes them, and answers questions about their
content with citations back to the source documents. It serves an HTTP
API, a WebSocket chat, and MCP tools for AI agents.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "clinrag.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
