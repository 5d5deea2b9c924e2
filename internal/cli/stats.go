package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Long:  "Item and embedding counts per namespace, with the metadata fields and values seen in each.",
		Run:   runStats,
	}

	cmd.Flags().StringP("ns", "n", "", "Only namespaces under this prefix")

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	prefix := prefixFlag(cmd)

	a := mustOpen()
	defer a.Close()

	stats, err := store.CollectStats(cmd.Context(), a.store, prefix)
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(stats)
}
