package recipes

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

func newExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a stored recipe in the portable format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store recipe.Store) error {
				snap, err := store.Get(ctx)
				if err != nil {
					return fmt.Errorf("failed to get recipes: %w", err)
				}
				r, ok := snap.Find(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", recipe.ErrNotFound, args[0])
				}
				if err = r.Validate(); err != nil {
					return err
				}
				data, err := recipe.Export(r)
				if err != nil {
					return err
				}

				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				return os.WriteFile(output, data, 0o600)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

func newImportCommand() *cobra.Command {
	var activate bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a portable recipe file into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readRecipe(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, store recipe.Store) error {
				if err := store.Put(ctx, *r); err != nil {
					return fmt.Errorf("failed to save recipe: %w", err)
				}
				if activate {
					if err := store.SetActive(ctx, r.ID); err != nil {
						return fmt.Errorf("failed to activate recipe: %w", err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as %s (%d fields)\n", r.Name, r.ID, len(r.Fields))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&activate, "activate", false, "make the imported recipe the active one")
	return cmd
}

func readRecipe(path string) (*recipe.CrawlRecipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe file: %w", err)
	}
	r, err := recipe.Import(data)
	if err != nil {
		return nil, err
	}
	if err = r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
