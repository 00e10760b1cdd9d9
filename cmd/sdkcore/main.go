package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaborage/sdkcore/internal/commands"
)

var version = "dev" // Set during build

func main() {
	rootCmd := &cobra.Command{
		Use:   "sdkcore",
		Short: "Inspect and exercise SDK client configuration",
		Long: `Loads SDK client options from YAML and environment variables, builds the
request pipeline for each client and issues requests through it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		commands.NewValidateCommand(),
		commands.NewGetCommand(),
		commands.NewVersionCommand(version),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
