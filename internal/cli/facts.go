package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/chunker"
	"github.com/rcliao/layered-memory/internal/memory"
)

func init() {
	factsCmd := &cobra.Command{
		Use:   "facts",
		Short: "Semantic memory: user facts or the shared knowledge base",
		Long:  "Semantic memory. With --user, work on that user's facts; without, on the shared investment knowledge base.",
	}
	factsCmd.PersistentFlags().StringP("user", "u", "", "User id (default: shared knowledge base)")

	addCmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Store a fact",
		Run:   runFactsAdd,
	}
	addCmd.Flags().StringP("key", "k", "", "Key (required)")
	addCmd.Flags().String("meta", "", "JSON metadata")
	addCmd.MarkFlagRequired("key")

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find facts similar to a query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runFactsSearch,
	}
	searchCmd.Flags().IntP("limit", "l", 3, "Max results")
	searchCmd.Flags().String("filter", "", "JSON metadata filter")

	ingestCmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Split a markdown document into chunks and store each as a fact",
		Args:  cobra.MaximumNArgs(1),
		Run:   runFactsIngest,
	}
	ingestCmd.Flags().StringP("key", "k", "", "Document key; chunks are stored as <key>#<n>")
	ingestCmd.Flags().String("glob", "", `Ingest every file matching a pattern relative to the working directory, e.g. "docs/**/*.md"; files are keyed by path`)
	ingestCmd.Flags().String("meta", "", "JSON metadata added to every chunk")
	ingestCmd.Flags().Int("target", chunker.DefaultTargetSize, "Target chunk size in bytes")
	ingestCmd.Flags().Int("min", chunker.DefaultMinSize, "Fold a smaller trailing chunk into the previous one")
	ingestCmd.Flags().Int("max", chunker.DefaultMaxSize, "Max chunk size in bytes")
	ingestCmd.MarkFlagsOneRequired("key", "glob")
	ingestCmd.MarkFlagsMutuallyExclusive("key", "glob")

	factsCmd.AddCommand(addCmd, searchCmd, ingestCmd)
	RootCmd.AddCommand(factsCmd)
}

func openSemantic(cmd *cobra.Command, a *app) *memory.Semantic {
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		return memory.NewKnowledge(a.store).WithMetric(a.cfg.SearchMetric())
	}
	f, err := memory.NewFacts(a.store, user)
	if err != nil {
		exitErr("facts", err)
	}
	return f.WithMetric(a.cfg.SearchMetric())
}

func runFactsAdd(cmd *cobra.Command, args []string) {
	key, _ := cmd.Flags().GetString("key")
	rawMeta, _ := cmd.Flags().GetString("meta")

	text, err := readInput(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		exitErr("facts add", errEmptyInput)
	}
	meta, err := parseObject(rawMeta)
	if err != nil {
		exitErr("meta", err)
	}

	a := mustOpen()
	defer a.Close()

	sem := openSemantic(cmd, a)
	if err := sem.Store(cmd.Context(), key, text, meta); err != nil {
		exitErr("facts add", err)
	}
	printJSON(map[string]any{"ok": true, "ns": sem.Namespace().String(), "key": key})
}

func runFactsSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	rawFilter, _ := cmd.Flags().GetString("filter")
	filter, err := parseObject(rawFilter)
	if err != nil {
		exitErr("filter", err)
	}

	a := mustOpen()
	defer a.Close()

	facts, err := openSemantic(cmd, a).SearchFiltered(cmd.Context(), strings.Join(args, " "), limit, filter)
	if err != nil {
		exitErr("facts search", err)
	}
	printJSON(facts)
}

func runFactsIngest(cmd *cobra.Command, args []string) {
	key, _ := cmd.Flags().GetString("key")
	pattern, _ := cmd.Flags().GetString("glob")
	rawMeta, _ := cmd.Flags().GetString("meta")
	target, _ := cmd.Flags().GetInt("target")
	minSize, _ := cmd.Flags().GetInt("min")
	maxSize, _ := cmd.Flags().GetInt("max")
	opts := chunker.Options{TargetSize: target, MinSize: minSize, MaxSize: maxSize}

	meta, err := parseObject(rawMeta)
	if err != nil {
		exitErr("meta", err)
	}

	if pattern != "" {
		a := mustOpen()
		defer a.Close()

		sem := openSemantic(cmd, a)
		counts, err := sem.IngestFS(cmd.Context(), os.DirFS("."), pattern, opts, meta)
		if err != nil {
			exitErr("facts ingest", err)
		}
		printJSON(map[string]any{"ok": true, "ns": sem.Namespace().String(), "files": counts})
		return
	}

	var doc string
	if len(args) == 1 {
		b, err := os.ReadFile(args[0]) // #nosec G304
		if err != nil {
			exitErr("read file", err)
		}
		doc = string(b)
	} else if doc, err = readInput(nil); err != nil {
		exitErr("read stdin", err)
	}

	a := mustOpen()
	defer a.Close()

	sem := openSemantic(cmd, a)
	n, err := sem.Ingest(cmd.Context(), key, doc, opts, meta)
	if err != nil {
		exitErr("facts ingest", err)
	}
	printJSON(map[string]any{"ok": true, "ns": sem.Namespace().String(), "key": key, "chunks": n})
}
