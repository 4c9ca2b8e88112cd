// Package cmd implements the crawl-selector command line: the service itself
// plus offline selector suggestion and recipe tooling.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tmdgusya/crawl-selector/cmd/common"
	"github.com/tmdgusya/crawl-selector/cmd/recipes"
	"github.com/tmdgusya/crawl-selector/cmd/serve"
	"github.com/tmdgusya/crawl-selector/cmd/suggest"
)

var rootCmd = &cobra.Command{
	Use:           "crawl-selector",
	Short:         "Build crawl recipes by picking elements on live pages",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String(common.FlagConfig, "", "config file (default is $CONFIG_PATH or ./config.yml)")
	rootCmd.PersistentFlags().Bool(common.FlagDebug, false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "crawl-selector version %s\n", common.Version)
		},
	})

	rootCmd.AddCommand(serve.Command())
	rootCmd.AddCommand(suggest.Command())
	rootCmd.AddCommand(recipes.Command())
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
