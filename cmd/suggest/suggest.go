// Package suggest implements the command that proposes selectors for elements
// of a fetched page.
package suggest

import (
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tmdgusya/crawl-selector/cmd/common"
	"github.com/tmdgusya/crawl-selector/internal/css"
	"github.com/tmdgusya/crawl-selector/internal/fetcher"
	"github.com/tmdgusya/crawl-selector/internal/selector"
)

var errNoMatch = errors.New("target matched no elements")

// Command returns the suggest command.
func Command() *cobra.Command {
	var (
		target string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "suggest <url>",
		Short: "Suggest durable selectors for elements of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps(cmd)
			if err != nil {
				return err
			}
			f := fetcher.New(deps.Config.Fetch, deps.Logger)
			synth := selector.NewSynthesizer(
				selector.WithAncestorDepth(deps.Config.Picker.AncestorDepth),
				selector.WithMaxAlternatives(deps.Config.Picker.MaxAlternatives),
			)

			doc, err := f.Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			matches, err := css.Find(doc.Selection, target)
			if err != nil {
				return err
			}
			if matches.Length() == 0 {
				return fmt.Errorf("%w: %s", errNoMatch, target)
			}

			results := make([]selector.Result, 0, limit)
			for _, n := range matches.Nodes {
				if len(results) == limit {
					break
				}
				results = append(results, synth.Synthesize(n))
			}
			render(cmd.OutOrStdout(), synth.Scorer(), results)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "CSS selector locating the elements to describe")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of matched elements to describe")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func render(w io.Writer, scorer *selector.Scorer, results []selector.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Selector", "Tier", "Reason", "Best"})

	for i, res := range results {
		for _, c := range res.Ranked {
			best := ""
			if c.Selector == res.Best {
				best = "*"
			}
			t.AppendRow(table.Row{i + 1, c.Selector, c.Tier, scorer.Explain(c.Selector).Reason, best})
		}
		t.AppendSeparator()
	}
	t.Render()
}
