// Printdesk serves the print shop chat assistant and offers offline print calculations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "printdesk",
	Short: "Print shop chat assistant",
	Long:  "Printdesk answers customer questions about artwork resolution and print sizes\nand routes each chat turn to exactly one response handler.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dpiCmd)
	rootCmd.AddCommand(handlersCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
