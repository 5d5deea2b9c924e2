package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/memory"
)

func init() {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Per-user profile and preferences",
	}
	profileCmd.PersistentFlags().StringP("user", "u", "", "User id (required)")
	profileCmd.PersistentFlags().Bool("prefs", false, "Use the preferences namespace instead of profile")
	profileCmd.MarkPersistentFlagRequired("user")

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show all entries",
		Run:   runProfileGet,
	}
	getCmd.Flags().Bool("text", false, "Render as prompt text")

	setCmd := &cobra.Command{
		Use:   "set [value]",
		Short: "Replace one entry with a JSON object (or text)",
		Run:   runProfileSet,
	}
	setCmd.Flags().StringP("key", "k", "", "Entry key, e.g. risk_tolerance (required)")
	setCmd.MarkFlagRequired("key")

	profileCmd.AddCommand(getCmd, setCmd)
	RootCmd.AddCommand(profileCmd)
}

func openProfile(cmd *cobra.Command, a *app) *memory.Profile {
	user, _ := cmd.Flags().GetString("user")
	prefs, _ := cmd.Flags().GetBool("prefs")
	open := memory.NewProfile
	if prefs {
		open = memory.NewPreferences
	}
	p, err := open(a.store, user)
	if err != nil {
		exitErr("profile", err)
	}
	return p
}

func runProfileGet(cmd *cobra.Command, args []string) {
	asText, _ := cmd.Flags().GetBool("text")

	a := mustOpen()
	defer a.Close()

	all, err := openProfile(cmd, a).GetAll(cmd.Context())
	if err != nil {
		exitErr("profile get", err)
	}
	if asText {
		fmt.Println(memory.FormatProfile(all))
		return
	}
	printJSON(all)
}

func runProfileSet(cmd *cobra.Command, args []string) {
	key, _ := cmd.Flags().GetString("key")
	content, err := readInput(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	value, err := parseValue(content)
	if err != nil {
		exitErr("profile set", err)
	}

	a := mustOpen()
	defer a.Close()

	p := openProfile(cmd, a)
	if err := p.Set(cmd.Context(), key, value); err != nil {
		exitErr("profile set", err)
	}
	printJSON(map[string]any{"ok": true, "ns": p.Namespace().String(), "key": key})
}
