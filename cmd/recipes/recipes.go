// Package recipes implements the recipe subcommands: listing, exporting and
// importing stored recipes, and testing a recipe file against live pages.
package recipes

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tmdgusya/crawl-selector/cmd/common"
	"github.com/tmdgusya/crawl-selector/internal/bootstrap"
	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

// Command returns the recipe command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recipe",
		Aliases: []string{"recipes"},
		Short:   "Manage crawl recipes",
	}
	cmd.AddCommand(newListCommand(), newExportCommand(), newImportCommand(), newTestCommand())
	return cmd
}

// withStore opens the configured store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store recipe.Store) error) error {
	deps, err := common.NewCommandDeps(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := bootstrap.SetupStore(deps.Config, deps.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			deps.Logger.Warn("Failed to close store", logger.Error(closeErr))
		}
	}()
	return fn(cmd.Context(), store)
}
