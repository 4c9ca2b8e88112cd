// Package serve implements the command that runs the HTTP service.
package serve

import (
	"github.com/spf13/cobra"

	"github.com/tmdgusya/crawl-selector/cmd/common"
	"github.com/tmdgusya/crawl-selector/internal/bootstrap"
)

// Command returns the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the crawl-selector API",
		Long: `Serve the extraction, recipe and picker API, the message bus and the
event stream consumed by the side panel.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(common.FlagConfig)
			debug, _ := cmd.Flags().GetBool(common.FlagDebug)
			return bootstrap.Start(cmd.Context(), path, debug, common.Version)
		},
	}
}
