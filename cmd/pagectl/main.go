package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pagectl",
		Short: "Page modules CLI - compose page module trees",
		Long: `Page modules command line interface

Inspect and edit the module tree of a content entity through the
page-modules HTTP API.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("server", getEnv("PAGECTL_SERVER", "http://localhost:8080/api/v1"), "API base URL")
	rootCmd.PersistentFlags().String("api-key", os.Getenv("PAGECTL_API_KEY"), "API key")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewTypesCommand())
	rootCmd.AddCommand(NewTreeCommand())
	rootCmd.AddCommand(NewInsertCommand())
	rootCmd.AddCommand(NewMoveCommand())
	rootCmd.AddCommand(NewRemoveCommand())
	rootCmd.AddCommand(NewAttrsCommand())
	rootCmd.AddCommand(NewDataCommand())
	rootCmd.AddCommand(NewPublishCommand())

	return rootCmd
}

// clientFromFlags creates an API client from the persistent flags
func clientFromFlags(cmd *cobra.Command) *Client {
	server, _ := cmd.Flags().GetString("server")
	apiKey, _ := cmd.Flags().GetString("api-key")
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Using server %s\n", server)
	}
	return NewClient(server, apiKey)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
