package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items in a namespace",
		Run:   runList,
	}

	cmd.Flags().StringP("ns", "n", "", "Namespace (required)")
	cmd.Flags().String("filter", "", "JSON equality filter")
	cmd.Flags().IntP("limit", "l", 20, "Max results (0 = all)")
	cmd.Flags().Bool("keys-only", false, "Only output keys")

	cmd.MarkFlagRequired("ns")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	ns := nsFlag(cmd)
	rawFilter, _ := cmd.Flags().GetString("filter")
	limit, _ := cmd.Flags().GetInt("limit")
	keysOnly, _ := cmd.Flags().GetBool("keys-only")

	filter, err := parseObject(rawFilter)
	if err != nil {
		exitErr("filter", err)
	}

	a := mustOpen()
	defer a.Close()

	if keysOnly {
		keys, err := store.Keys(cmd.Context(), a.store, ns, filter)
		if err != nil {
			exitErr("list", err)
		}
		if limit > 0 && len(keys) > limit {
			keys = keys[:limit]
		}
		printJSON(keys)
		return
	}

	results, err := a.store.Search(cmd.Context(), ns, store.SearchParams{Limit: limit, Filter: filter})
	if err != nil {
		exitErr("list", err)
	}
	for i := range results {
		results[i].Embedding = nil
	}
	printJSON(results)
}
