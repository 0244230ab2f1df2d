package main

import (
	"context"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"connlab/internal/logging"
	mcpserver "connlab/internal/mcp"
)

var serveDataDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP inspection server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing read-only tools over a
prepared dataset directory: partition lookups, dataset status, and an
on-demand leakage check.

The server monitors for parent process death and self-terminates when the
client disconnects, preventing zombie server processes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		srv := mcpserver.NewServer(serveDataDir)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		mcpserver.WatchParent(ctx, cancel)

		logging.New("mcp").Info("starting connlab MCP server over stdio", "data_dir", serveDataDir)
		return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveDataDir, "data", "data", "Prepared dataset directory")
	rootCmd.AddCommand(serveCmd)
}
