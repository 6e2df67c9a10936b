package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/clinrag/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing document search and question answering tools for AI agents like Claude Code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.rebuildIndex(context.Background()); err != nil {
			// Stdout carries the protocol; warnings go to stderr.
			fmt.Fprintf(os.Stderr, "Warning: could not rebuild index: %v\n", err)
			fmt.Fprintf(os.Stderr, "Search results may be empty until documents are reingested.\n")
		}

		mcpserver.Version = Version
		fmt.Fprintf(os.Stderr, "clinrag MCP server started on stdio (entries=%d)\n", a.manager.EntryCount())

		srv := mcpserver.NewServer(a.search, a.rag, a.registry)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
