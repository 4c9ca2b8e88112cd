package recipes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tmdgusya/crawl-selector/cmd/common"
	"github.com/tmdgusya/crawl-selector/internal/fetcher"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

const maxValueWidth = 60

var errFieldsFailed = errors.New("some fields failed")

type pageResult struct {
	url     string
	results map[string]recipe.FieldTestResult
	err     error
}

func newTestCommand() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "test <file> <url>...",
		Short: "Run a recipe file against live pages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readRecipe(args[0])
			if err != nil {
				return err
			}
			deps, err := common.NewCommandDeps(cmd)
			if err != nil {
				return err
			}
			f := fetcher.New(deps.Config.Fetch, deps.Logger)

			pages := runPages(cmd.Context(), f, r.Fields, args[1:], concurrency)
			if failed := render(cmd.OutOrStdout(), r.Fields, pages); failed > 0 {
				return fmt.Errorf("%w: %d", errFieldsFailed, failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "pages fetched in parallel")
	return cmd
}

// runPages fetches every url; a page failure is recorded in its result and
// does not stop the others.
func runPages(ctx context.Context, f *fetcher.Fetcher, fields []recipe.SelectorField, urls []string, concurrency int) []pageResult {
	out := make([]pageResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, u := range urls {
		g.Go(func() error {
			res, err := f.FetchAndExtract(gctx, u, fields)
			out[i] = pageResult{url: u, results: res, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// render prints one row per page and field, returning the number of failures.
func render(w io.Writer, fields []recipe.SelectorField, pages []pageResult) int {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"URL", "Field", "OK", "Matches", "Value"})

	failed := 0
	for _, p := range pages {
		if p.err != nil {
			failed += len(fields)
			t.AppendRow(table.Row{p.url, "", "no", 0, p.err.Error()})
			t.AppendSeparator()
			continue
		}
		for _, f := range fields {
			res := p.results[f.ID]
			ok, value := "yes", strings.Join(res.Transformed.Strings(), " | ")
			if !res.Success {
				failed++
				ok, value = "no", res.Error
			}
			t.AppendRow(table.Row{p.url, f.FieldName, ok, res.MatchCount, text.Trim(value, maxValueWidth)})
		}
		t.AppendSeparator()
	}
	t.Render()
	return failed
}
