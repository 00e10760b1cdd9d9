package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaborage/sdkcore/config"
	"github.com/gaborage/sdkcore/logger"
	"github.com/gaborage/sdkcore/registry"
)

var errNoClients = errors.New("no clients configured")

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	opts := &LoaderOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate client options and build every pipeline",
		Long: `Reads every client under the clients section, validates its options and
builds its request pipeline without sending any request.`,
		Example: `  # Validate a configuration file
  sdkcore validate -c clients.yaml

  # Include SDKCORE_ environment overrides and a .env file
  sdkcore validate -c clients.yaml --env-file .env`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVar(&opts.EnvPrefix, "env-prefix", config.DefaultEnvPrefix, "Environment variable prefix, empty to disable")
	cmd.Flags().StringSliceVar(&opts.DotEnv, "env-file", nil, ".env files loaded before reading the environment")

	return cmd
}

func runValidate(out io.Writer, opts *LoaderOptions) error {
	l, err := opts.load()
	if err != nil {
		return err
	}

	names := l.Names()
	if len(names) == 0 {
		return errNoClients
	}

	var failed int
	for _, name := range names {
		desc, err := describeClient(l, name)
		if err != nil {
			fmt.Fprintf(out, "❌ %s: %v\n", name, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "✅ %s\n", desc)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d clients invalid", failed, len(names))
	}
	return nil
}

func describeClient(l *config.Loader, name string) (string, error) {
	opts, err := l.Client(name)
	if err != nil {
		return "", err
	}
	client, err := registry.NewBuilder(name, opts, logger.Nop()).Build()
	if err != nil {
		return "", err
	}
	defer client.Close()

	stages := client.Resilience().Pipeline().Stages()
	if len(stages) == 0 {
		return fmt.Sprintf("%s → %s (resilience disabled)", name, opts.BaseURL), nil
	}
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = string(s)
	}
	return fmt.Sprintf("%s → %s [%s]", name, opts.BaseURL, strings.Join(parts, " → ")), nil
}
