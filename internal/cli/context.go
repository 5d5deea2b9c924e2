package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [message]",
		Short: "Assemble the memory context for a user message",
		Long:  "Gather instructions, profile, relevant knowledge and similar past interactions, then greedily pack them into a token budget.",
		Run:   runContext,
	}

	cmd.Flags().StringP("user", "u", "", "User id")
	cmd.Flags().IntP("budget", "b", memory.DefaultContextBudget, "Max tokens in output")
	cmd.Flags().Bool("text", false, "Print only the assembled text")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	budget, _ := cmd.Flags().GetInt("budget")
	asText, _ := cmd.Flags().GetBool("text")
	message := strings.Join(args, " ")

	a := mustOpen()
	defer a.Close()

	result, err := mustSubstrate(a).BuildContext(cmd.Context(), user, message, budget)
	if err != nil {
		exitErr("context", err)
	}
	if asText {
		fmt.Println(result.Text)
		return
	}
	printJSON(result)
}
