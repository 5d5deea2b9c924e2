package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the default instructions and sample episodes where absent",
		Run:   runSeed,
	}

	RootCmd.AddCommand(cmd)
}

func runSeed(cmd *cobra.Command, args []string) {
	a := mustOpen()
	defer a.Close()

	res, err := mustSubstrate(a).Seed(cmd.Context())
	if err != nil {
		exitErr("seed", err)
	}
	printJSON(res)
}
