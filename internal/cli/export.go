package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export items as JSON",
		Long:  "Export items as a JSON array. Embeddings are left out; import recomputes them. Filter by namespace prefix with -n.",
		Run:   runExport,
	}

	cmd.Flags().StringP("ns", "n", "", "Namespace prefix")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	prefix := prefixFlag(cmd)

	a := mustOpen()
	defer a.Close()

	items, err := store.ExportAll(cmd.Context(), a.store, prefix)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(items)
}
