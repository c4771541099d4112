package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

const appName = "tripplanner"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Conversational trip planning assistant",
		Long: `tripplanner streams travel planning replies together with structured
itinerary actions.

It provides:
- serve: the HTTP plan endpoint, backed by an OpenAI compatible model or
  canned replies when no model is configured
- chat: an interactive terminal session against a running server`,
		SilenceUsage: true,
	}

	cmd.AddCommand(serveCmd(), chatCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}
