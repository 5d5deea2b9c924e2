package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/condense"
	"github.com/rcliao/layered-memory/internal/llm"
	"github.com/rcliao/layered-memory/internal/model"
)

func init() {
	condenseCmd := &cobra.Command{
		Use:   "condense",
		Short: "Shrink a conversation history read as a JSON message list from stdin",
	}

	trimCmd := &cobra.Command{
		Use:   "trim",
		Short: "Keep system messages and the newest messages that fit a token budget",
		Run:   runCondenseTrim,
	}
	trimCmd.Flags().Int("max-tokens", 2000, "Token budget")
	trimCmd.Flags().Bool("preserve-first", true, "Keep the first user message even if it was trimmed")

	summarizeCmd := &cobra.Command{
		Use:   "summarize",
		Short: "Replace older messages with an LLM summary",
		Run:   runCondenseSummarize,
	}
	summarizeCmd.Flags().Int("max-messages", 10, "Messages to keep, including the summary")

	condenseCmd.AddCommand(trimCmd, summarizeCmd)
	RootCmd.AddCommand(condenseCmd)
}

func readMessages() []model.Message {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}
	var msgs []model.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		exitErr("parse messages", err)
	}
	return model.EnsureIDs(msgs)
}

func runCondenseTrim(cmd *cobra.Command, args []string) {
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	preserveFirst, _ := cmd.Flags().GetBool("preserve-first")

	printJSON(condense.Trim(readMessages(), maxTokens, condense.ApproxTokens, preserveFirst))
}

func runCondenseSummarize(cmd *cobra.Command, args []string) {
	maxMessages, _ := cmd.Flags().GetInt("max-messages")
	msgs := readMessages()

	cfg, err := loadConfig()
	if err != nil {
		exitErr("config", err)
	}
	c, err := llm.New(cfg.LLMSettings())
	if err != nil {
		exitErr("llm", err)
	}
	if c == nil {
		exitErr("condense summarize", fmt.Errorf("no llm provider configured (set llm.provider or LAYERED_MEMORY_LLM_PROVIDER)"))
	}

	out, err := condense.Summarize(cmd.Context(), msgs, maxMessages, llm.Summarizer(c))
	if err != nil {
		exitErr("condense summarize", err)
	}
	printJSON(out)
}
