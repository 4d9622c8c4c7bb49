package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/facade/internal/locator"
	"github.com/agentic-research/facade/internal/view"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the view hierarchy of a namespace",
	Long: `Tree prints every view reachable from the root view, the namespace
backing it, and the namespaces it overrides.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(namespace)
		if err != nil {
			return err
		}
		return printTree(cmd.OutOrStdout(), eng.Views())
	},
}

func printTree(w io.Writer, reg *view.Registry) error {
	return reg.Walk(func(n *view.Node, depth int) error {
		line := fmt.Sprintf("%s%s  [%s]", strings.Repeat("  ", depth), n.Name(), n.Namespace())
		if shadowed := locator.Shadowed(reg.Coverage(n.Name()), reg.Roots(), n.Root()); len(shadowed) > 0 {
			line += "  overrides " + strings.Join(shadowed, ", ")
		}
		_, err := fmt.Fprintln(w, line)
		return err
	})
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
