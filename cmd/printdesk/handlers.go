package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashureev/printdesk/internal/agent"
)

var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List the response handlers in evaluation order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		router, err := agent.NewDefaultRouter(agent.DefaultRouterConfig{})
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tVERSION\tPRIORITY\t")
		for _, h := range router.Handlers() {
			priority := fmt.Sprint(h.Priority)
			if h.Fallback {
				priority = "fallback"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", h.Name, h.Version, priority)
		}
		return tw.Flush()
	},
}
