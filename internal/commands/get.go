package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/gaborage/sdkcore/config"
	"github.com/gaborage/sdkcore/httpclient"
	"github.com/gaborage/sdkcore/observability"
	"github.com/gaborage/sdkcore/registry"
	"github.com/gaborage/sdkcore/telemetry"
	"github.com/gaborage/sdkcore/telemetry/metrics"
)

// GetOptions holds options for the get command
type GetOptions struct {
	LoaderOptions
	Client  string
	Headers []string
	Query   []string
	Timeout time.Duration
	Verbose bool
	Metrics bool
}

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	opts := &GetOptions{}

	cmd := &cobra.Command{
		Use:   "get <endpoint>",
		Short: "Send a GET request through a configured client",
		Long: `Builds the named client from configuration and sends one GET request through
its full pipeline. The endpoint is resolved against the client's base URL.`,
		Example: `  sdkcore get -c clients.yaml --client delivery items --query limit=10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVar(&opts.EnvPrefix, "env-prefix", config.DefaultEnvPrefix, "Environment variable prefix, empty to disable")
	cmd.Flags().StringSliceVar(&opts.DotEnv, "env-file", nil, ".env files loaded before reading the environment")
	cmd.Flags().StringVar(&opts.Client, "client", "", "Configured client name")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, "Extra header as key=value")
	cmd.Flags().StringArrayVarP(&opts.Query, "query", "q", nil, "Query parameter as key=value")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Overall deadline")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log pipeline activity to stderr")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "Print Prometheus metrics for the call")
	_ = cmd.MarkFlagRequired("client")

	return cmd
}

func runGet(ctx context.Context, out, errOut io.Writer, opts *GetOptions, endpoint string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	callOpts, err := callOptions(opts)
	if err != nil {
		return err
	}

	l, err := opts.load()
	if err != nil {
		return err
	}
	log := newLogger(l, errOut, opts.Verbose)

	obsCfg, err := observability.Load(l)
	if err != nil {
		return err
	}
	provider, err := observability.NewProvider(obsCfg, log, observability.WithWriter(errOut))
	if err != nil {
		return err
	}
	defer func() { _ = observability.Shutdown(provider, 0) }()

	otelListener, err := observability.NewListener(provider)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	listener := telemetry.Listeners{otelListener, metrics.NewCollector(reg, "sdkcore")}
	if opts.Verbose {
		listener = append(listener, telemetry.NewLogListener(log))
	}

	clientOpts, err := l.Client(opts.Client)
	if err != nil {
		return err
	}

	f := registry.NewFactory(log)
	defer f.Close()
	if err := f.Register(opts.Client, clientOpts, func(b *registry.Builder) { b.WithListener(listener) }); err != nil {
		return err
	}
	inv, err := f.Invoker(opts.Client)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	resp, err := inv.Get(ctx, endpoint, callOpts...)
	if resp != nil {
		printResponse(out, resp)
	}
	if opts.Metrics {
		if merr := printMetrics(out, reg); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

func printMetrics(out io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(out, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}

func callOptions(opts *GetOptions) ([]httpclient.CallOption, error) {
	var callOpts []httpclient.CallOption
	for _, h := range opts.Headers {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q, want key=value", h)
		}
		callOpts = append(callOpts, httpclient.WithHeader(k, v))
	}
	for _, q := range opts.Query {
		k, v, ok := strings.Cut(q, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid query parameter %q, want key=value", q)
		}
		callOpts = append(callOpts, httpclient.WithQuery(k, v))
	}
	return callOpts, nil
}

func printResponse(out io.Writer, resp *httpclient.Response) {
	fmt.Fprintf(out, "HTTP %d (%d attempts, %s)\n", resp.StatusCode, resp.Attempts, resp.Elapsed.Round(time.Millisecond))
	if token := resp.ContinuationToken(); token != "" {
		fmt.Fprintf(out, "Continuation: %s\n", token)
	}
	if len(resp.Body) == 0 {
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.Body, "", "  "); err != nil {
		_, _ = out.Write(resp.Body)
		fmt.Fprintln(out)
		return
	}
	_, _ = pretty.WriteTo(out)
	fmt.Fprintln(out)
}
