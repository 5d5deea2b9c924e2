package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/embedding"
	"github.com/rcliao/layered-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search a namespace",
		Long:  "Rank items in a namespace by similarity to the query. Without a query, list items in insertion order.",
		Run:   runSearch,
	}

	cmd.Flags().StringP("ns", "n", "", "Namespace (required)")
	cmd.Flags().IntP("limit", "l", 10, "Max results")
	cmd.Flags().String("filter", "", `JSON equality filter, e.g. {"topic":"bonds"}`)
	cmd.Flags().String("metric", "", "cosine, euclidean or manhattan (default from config)")

	cmd.MarkFlagRequired("ns")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	ns := nsFlag(cmd)
	limit, _ := cmd.Flags().GetInt("limit")
	rawFilter, _ := cmd.Flags().GetString("filter")
	rawMetric, _ := cmd.Flags().GetString("metric")
	query := strings.Join(args, " ")

	filter, err := parseObject(rawFilter)
	if err != nil {
		exitErr("filter", err)
	}

	a := mustOpen()
	defer a.Close()

	metric := a.cfg.SearchMetric()
	if rawMetric != "" {
		if metric, err = embedding.ParseMetric(rawMetric); err != nil {
			exitErr("metric", err)
		}
	}

	results, err := a.store.Search(cmd.Context(), ns, store.SearchParams{
		Query:  query,
		Limit:  limit,
		Filter: filter,
		Metric: metric,
	})
	if err != nil {
		exitErr("search", err)
	}
	for i := range results {
		results[i].Embedding = nil
	}
	printJSON(results)
}
