package commands

import (
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/codescope-dev/codescope/pkg/mcp"
	"github.com/codescope-dev/codescope/pkg/observability"
)

// ServeMCPCommand runs the pipeline as an MCP stdio server, exposing
// analyze_repo/get_status/get_result to agentic clients.
type ServeMCPCommand struct {
	configPath string

	bootstrapFunc func(string, observability.AppMode) (*App, error)
}

// NewServeMCPCommand builds the "serve-mcp" subcommand.
func NewServeMCPCommand() *cobra.Command {
	sc := &ServeMCPCommand{bootstrapFunc: bootstrap}

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Expose the pipeline as MCP tools over stdio",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return sc.run(cobraCmd)
		},
	}

	cmd.Flags().StringVar(&sc.configPath, "config", "", "path to config file")

	return cmd
}

func (sc *ServeMCPCommand) run(cobraCmd *cobra.Command) error {
	app, err := sc.bootstrapFunc(sc.configPath, observability.ModeMCP)
	if err != nil {
		return err
	}

	ctx := cobraCmd.Context()

	defer func() { _ = app.Shutdown(ctx) }()

	app.Manager.Start(ctx)
	defer app.Manager.Stop()

	server := mcp.NewServer(app.Manager, app.Codec, app.Logger, app.Config.Cache.ReportCacheBytes)

	return server.Build().Run(ctx, &sdk.StdioTransport{})
}
