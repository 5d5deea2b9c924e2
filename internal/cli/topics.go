package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/llm"
)

func init() {
	cmd := &cobra.Command{
		Use:   "topics [message]",
		Short: "Classify a message into investment topics using the configured LLM",
		Run:   runTopics,
	}

	RootCmd.AddCommand(cmd)
}

func runTopics(cmd *cobra.Command, args []string) {
	message, err := readInput(args)
	if err != nil {
		exitErr("topics", err)
	}

	a := mustOpen()
	defer a.Close()

	c, err := a.completer()
	if err != nil {
		exitErr("llm", err)
	}
	if c == nil {
		exitErr("topics", fmt.Errorf("no llm provider configured (set llm.provider or LAYERED_MEMORY_LLM_PROVIDER)"))
	}

	topics, err := llm.ExtractTopics(cmd.Context(), c, message)
	if err != nil {
		exitErr("topics", err)
	}
	printJSON(map[string]any{"topics": topics})
}
