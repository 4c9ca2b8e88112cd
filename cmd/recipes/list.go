package recipes

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store recipe.Store) error {
				snap, err := store.Get(ctx)
				if err != nil {
					return fmt.Errorf("failed to get recipes: %w", err)
				}
				if len(snap.Recipes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recipes stored")
					return nil
				}
				renderList(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
}

func renderList(w io.Writer, snap recipe.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "URL Pattern", "Fields", "Active", "Updated"})

	for _, r := range snap.Recipes {
		active := ""
		if r.ID == snap.ActiveID {
			active = "*"
		}
		t.AppendRow(table.Row{r.ID, r.Name, r.URLPattern, len(r.Fields), active, r.UpdatedAt.Format("2006-01-02 15:04")})
	}
	t.Render()
}
