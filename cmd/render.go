package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentic-research/facade/internal/config"
	"github.com/agentic-research/facade/internal/dispatch"
)

var (
	renderMethod string
	renderParams []string
)

var renderCmd = &cobra.Command{
	Use:   "render <path>",
	Short: "Render one request to stdout",
	Long: `Render dispatches a single request without a server and writes the
response body to stdout. Unless --namespace is given it runs in the "cli"
namespace.`,
	Example: `  facade render /blog/post/?page=2
  facade render -X POST -p title=Hello /blog/new`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns := config.CLINamespace
		if cmd.Flags().Changed("namespace") {
			ns = namespace
		}
		eng, err := newEngine(ns)
		if err != nil {
			return err
		}

		req := dispatch.NewRequest(renderMethod, args[0])
		req.ID = uuid.New().String()
		req.Host = "localhost"
		for _, p := range renderParams {
			k, v, _ := strings.Cut(p, "=")
			if req.IsPost() {
				req.Form.Add(k, v)
			} else {
				req.Query.Add(k, v)
			}
		}

		resp := eng.Handle(cmd.Context(), req)
		if _, err := cmd.OutOrStdout().Write(resp.Body); err != nil {
			return err
		}
		if resp.Status >= 400 {
			return fmt.Errorf("%s %s: status %d", req.Method, req.Path, resp.Status)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderMethod, "method", "X", "GET", "Request method")
	renderCmd.Flags().StringArrayVarP(&renderParams, "param", "p", nil, "Request parameter as key=value (repeatable)")
	rootCmd.AddCommand(renderCmd)
}
