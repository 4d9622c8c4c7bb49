package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/facade/internal/pagecache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the page cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge [path-prefix]",
	Short: "Remove cached pages",
	Long: `Purge removes cached pages whose request path starts with the given
prefix, or every page when none is given. With --namespace only that
namespace is purged.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cachePath == "" {
			return errors.New("--cache is required")
		}
		c, err := pagecache.Open(cachePath)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		ns := ""
		if cmd.Flags().Changed("namespace") {
			ns = namespace
		}
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		n, err := c.Purge(cmd.Context(), ns, prefix)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d pages\n", n)
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().StringVar(&cachePath, "cache", "", "Page cache database")
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
