package cmd

import (
	"github.com/spf13/cobra"

	"github.com/therealashik/julesctl/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for coding-agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients drive Jules sessions natively. Configure with:

  {
    "mcpServers": {
      "jules": { "command": "julesctl", "args": ["mcp"] }
    }
  }

Available tools: jules_list_sessions, jules_get_session,
jules_create_session, jules_send_message, jules_approve_plan,
jules_list_activities, jules_list_sources`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := getClient()
		if err != nil {
			return err
		}
		return mcp.NewServer(client).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
