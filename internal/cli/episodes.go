package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/memory"
	"github.com/rcliao/layered-memory/internal/model"
)

func init() {
	episodesCmd := &cobra.Command{
		Use:   "episodes",
		Short: "Episodic memory: past interactions used as few-shot examples",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Store an episode",
		Run:   runEpisodesAdd,
	}
	addCmd.Flags().StringP("key", "k", "", "Key (required)")
	addCmd.Flags().String("situation", "", "What the interaction was about; this is what similarity is computed on (required)")
	addCmd.Flags().String("input", "", "User message")
	addCmd.Flags().String("output", "", "Assistant reply")
	addCmd.Flags().String("feedback", "", "Optional feedback on the reply")
	addCmd.MarkFlagRequired("key")
	addCmd.MarkFlagRequired("situation")

	similarCmd := &cobra.Command{
		Use:   "similar [query]",
		Short: "Find episodes similar to a situation",
		Args:  cobra.MinimumNArgs(1),
		Run:   runEpisodesSimilar,
	}
	similarCmd.Flags().IntP("limit", "l", 2, "Max results")
	similarCmd.Flags().Bool("few-shot", false, "Render as few-shot prompt text")

	episodesCmd.AddCommand(addCmd, similarCmd)
	RootCmd.AddCommand(episodesCmd)
}

func runEpisodesAdd(cmd *cobra.Command, args []string) {
	var ep model.Episode
	ep.Key, _ = cmd.Flags().GetString("key")
	ep.Situation, _ = cmd.Flags().GetString("situation")
	ep.Input, _ = cmd.Flags().GetString("input")
	ep.Output, _ = cmd.Flags().GetString("output")
	ep.Feedback, _ = cmd.Flags().GetString("feedback")

	a := mustOpen()
	defer a.Close()

	e := memory.NewEpisodic(a.store)
	if err := e.Store(cmd.Context(), ep); err != nil {
		exitErr("episodes add", err)
	}
	printJSON(map[string]any{"ok": true, "ns": e.Namespace().String(), "key": ep.Key})
}

func runEpisodesSimilar(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	fewShot, _ := cmd.Flags().GetBool("few-shot")

	a := mustOpen()
	defer a.Close()

	eps, err := memory.NewEpisodic(a.store).WithMetric(a.cfg.SearchMetric()).FindSimilar(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		exitErr("episodes similar", err)
	}
	if fewShot {
		fmt.Println(memory.FormatAsFewShot(eps))
		return
	}
	printJSON(eps)
}
