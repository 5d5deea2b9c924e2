package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/layered-memory/internal/namespace"
)

func init() {
	nsCmd := &cobra.Command{
		Use:   "ns",
		Short: "Namespace management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List namespaces holding at least one item",
		Run:   runNSList,
	}
	listCmd.Flags().StringP("ns", "n", "", "Only namespaces under this prefix")

	conventionsCmd := &cobra.Command{
		Use:   "conventions",
		Short: "Show the namespace conventions for a user",
		Run:   runNSConventions,
	}
	conventionsCmd.Flags().StringP("user", "u", "", "User id for per-user conventions")

	nsCmd.AddCommand(listCmd, conventionsCmd)
	RootCmd.AddCommand(nsCmd)
}

func runNSList(cmd *cobra.Command, args []string) {
	prefix := prefixFlag(cmd)

	a := mustOpen()
	defer a.Close()

	list, err := a.store.ListNamespaces(cmd.Context(), prefix)
	if err != nil {
		exitErr("list namespaces", err)
	}
	paths := make([]string, len(list))
	for i, ns := range list {
		paths[i] = ns.String()
	}
	printJSON(paths)
}

func runNSConventions(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")

	out := map[string]string{}
	for _, name := range namespace.Conventions() {
		ns, err := namespace.Resolve(name, user)
		if err != nil {
			continue
		}
		out[name] = ns.String()
	}
	printJSON(out)
}
