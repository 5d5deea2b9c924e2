package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Procedural memory: the versioned assistant instructions",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the current instructions and version",
		Run:   runPolicyGet,
	}

	setCmd := &cobra.Command{
		Use:   "set [instructions]",
		Short: "Replace the instructions, bumping the version",
		Run:   runPolicySet,
	}

	reflectCmd := &cobra.Command{
		Use:   "reflect [feedback]",
		Short: "Revise the instructions from feedback using the configured LLM",
		Run:   runPolicyReflect,
	}

	policyCmd.AddCommand(getCmd, setCmd, reflectCmd)
	RootCmd.AddCommand(policyCmd)
}

func runPolicyGet(cmd *cobra.Command, args []string) {
	a := mustOpen()
	defer a.Close()

	pol, err := mustSubstrate(a).Procedural.Get(cmd.Context())
	if err != nil {
		exitErr("policy get", err)
	}
	printJSON(pol)
}

func runPolicySet(cmd *cobra.Command, args []string) {
	text, err := readInput(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		exitErr("policy set", errEmptyInput)
	}

	a := mustOpen()
	defer a.Close()

	version, err := mustSubstrate(a).Procedural.Update(cmd.Context(), text)
	if err != nil {
		exitErr("policy set", err)
	}
	printJSON(map[string]any{"ok": true, "version": version})
}

func runPolicyReflect(cmd *cobra.Command, args []string) {
	feedback, err := readInput(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		exitErr("policy reflect", errEmptyInput)
	}

	a := mustOpen()
	defer a.Close()

	instructions, version, err := mustSubstrate(a).Procedural.ReflectAndUpdate(cmd.Context(), feedback)
	if err != nil {
		exitErr("policy reflect", err)
	}
	printJSON(map[string]any{"instructions": instructions, "version": version})
}
