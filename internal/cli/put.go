package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [value]",
		Short: "Store an item",
		Long:  "Store an item. The value is a JSON object, or plain text stored as {\"text\": ...}. It can be a positional arg or piped via stdin.",
		Run:   runPut,
	}

	cmd.Flags().StringP("ns", "n", "", "Namespace path, e.g. user-1/facts (required)")
	cmd.Flags().StringP("key", "k", "", "Key (required)")
	cmd.Flags().Int64("if-revision", -1, "Only write if the current revision matches (0 = must not exist)")

	cmd.MarkFlagRequired("ns")
	cmd.MarkFlagRequired("key")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	ns := nsFlag(cmd)
	key, _ := cmd.Flags().GetString("key")
	ifRevision, _ := cmd.Flags().GetInt64("if-revision")

	content, err := readInput(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	value, err := parseValue(content)
	if err != nil {
		exitErr("put", err)
	}

	a := mustOpen()
	defer a.Close()

	ctx := cmd.Context()
	if ifRevision >= 0 {
		it, err := a.store.PutIf(ctx, ns, key, value, uint64(ifRevision))
		if err != nil {
			exitErr("put", err)
		}
		printJSON(it)
		return
	}
	it, err := a.store.Put(ctx, ns, key, value)
	if err != nil {
		exitErr("put", err)
	}
	printJSON(it)
}
