package cli

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackrank/internal/server"
	"github.com/matzehuels/stackrank/pkg/observability"
)

type serveOptions struct {
	addr       string
	sessionTTL time.Duration
	noMetrics  bool
}

// serveCommand creates the serve command, which exposes comparisons and
// suggestions over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the comparison HTTP API.

The listen address defaults to [server] addr in the config file (":8080").
Prometheus metrics for fetches, cache lookups and outbound HTTP calls are
served on /metrics unless --no-metrics is set.`,
		Example: `  stackrank serve
  STACKRANK_CACHE_BACKEND=redis STACKRANK_REDIS_URL=redis://localhost:6379/0 stackrank serve --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			addr := cfg.Server.Addr
			if opts.addr != "" {
				addr = opts.addr
			}

			serverOpts := []server.Option{server.WithLogger(logger)}
			if opts.sessionTTL > 0 {
				serverOpts = append(serverOpts, server.WithSessionTTL(opts.sessionTTL))
			}
			if !opts.noMetrics {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				hooks := observability.NewPrometheusHooks(reg)
				observability.SetFetchHooks(hooks)
				observability.SetCacheHooks(hooks)
				observability.SetHTTPHooks(hooks)
				defer observability.Reset()
				serverOpts = append(serverOpts, server.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
			}

			svc, err := c.newServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := server.New(svc.orch, svc.catalog, serverOpts...)
			defer srv.Close()

			backend := cfg.Cache.Backend
			if c.noCache {
				backend = "none"
			}
			logger.Debug("serve config", "addr", addr, "cache", backend, "metrics", !opts.noMetrics)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides [server] addr)")
	cmd.Flags().DurationVar(&opts.sessionTTL, "session-ttl", 0, "idle time before a session is dropped (default 30m)")
	cmd.Flags().BoolVar(&opts.noMetrics, "no-metrics", false, "do not serve /metrics")

	return cmd
}
