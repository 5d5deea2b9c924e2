package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Retrieve an item",
		Run:   runGet,
	}

	cmd.Flags().StringP("ns", "n", "", "Namespace (required)")
	cmd.Flags().StringP("key", "k", "", "Key (required)")

	cmd.MarkFlagRequired("ns")
	cmd.MarkFlagRequired("key")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	ns := nsFlag(cmd)
	key, _ := cmd.Flags().GetString("key")

	a := mustOpen()
	defer a.Close()

	it, err := a.store.Get(cmd.Context(), ns, key)
	if err != nil {
		exitErr("get", err)
	}
	it.Embedding = nil
	printJSON(it)
}
