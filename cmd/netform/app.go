package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	internalaws "github.com/eleven-am/netform/internal/aws"
	"github.com/eleven-am/netform/internal/config"
	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
	"github.com/eleven-am/netform/internal/reconciler"
	"github.com/eleven-am/netform/internal/validate"
)

// app holds what every command shares: settings, logger and metrics.
type app struct {
	configPath   string
	topologyPath string
	output       string

	flags config.Config
	cfg   config.Config
	log   zerolog.Logger
	out   io.Writer

	registry *prometheus.Registry
	metrics  *reconciler.Metrics
	session  *internalaws.Session
}

func (a *app) bindFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "Path to a netform settings file")
	f.StringVarP(&a.topologyPath, "topology", "t", "topology.yaml", "Path to the topology file")
	f.StringVarP(&a.output, "output", "o", "text", "Output format: text or json")

	f.StringVar(&a.flags.Region, "region", "", "AWS region")
	f.StringVar(&a.flags.Profile, "profile", "", "AWS shared config profile")
	f.StringVar(&a.flags.RoleARN, "role-arn", "", "IAM role to assume before calling EC2")
	f.StringVar(&a.flags.State.Backend, "state-backend", "", "State backend: memory, file, s3 or postgres")
	f.StringVar(&a.flags.State.Path, "state-path", "", "State file for the file backend")
	f.StringVar(&a.flags.State.Bucket, "state-bucket", "", "Bucket for the s3 backend")
	f.StringVar(&a.flags.State.Prefix, "state-prefix", "", "Key prefix for the s3 backend")
	f.StringVar(&a.flags.State.DSN, "state-dsn", "", "Connection string for the postgres backend")
	f.IntVar(&a.flags.Concurrency, "concurrency", 0, "Maximum resources reconciled at once")
	f.DurationVar(&a.flags.CallTimeout, "call-timeout", 0, "Timeout of a single provider call")
	f.Float64Var(&a.flags.RateLimit, "rate-limit", 0, "Provider calls per second, 0 for unlimited")
	f.StringVar(&a.flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&a.flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	f.BoolVar(&a.flags.LogJSON, "log-json", false, "Log JSON lines instead of console output")
}

// setup merges config file, environment and changed flags, in that order.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	overrides := []struct {
		flag  string
		apply func()
	}{
		{"region", func() { cfg.Region = a.flags.Region }},
		{"profile", func() { cfg.Profile = a.flags.Profile }},
		{"role-arn", func() { cfg.RoleARN = a.flags.RoleARN }},
		{"state-backend", func() { cfg.State.Backend = a.flags.State.Backend }},
		{"state-path", func() { cfg.State.Path = a.flags.State.Path }},
		{"state-bucket", func() { cfg.State.Bucket = a.flags.State.Bucket }},
		{"state-prefix", func() { cfg.State.Prefix = a.flags.State.Prefix }},
		{"state-dsn", func() { cfg.State.DSN = a.flags.State.DSN }},
		{"concurrency", func() { cfg.Concurrency = a.flags.Concurrency }},
		{"call-timeout", func() { cfg.CallTimeout = a.flags.CallTimeout }},
		{"rate-limit", func() { cfg.RateLimit = a.flags.RateLimit }},
		{"metrics-addr", func() { cfg.MetricsAddr = a.flags.MetricsAddr }},
		{"log-level", func() { cfg.LogLevel = a.flags.LogLevel }},
		{"log-json", func() { cfg.LogJSON = a.flags.LogJSON }},
	}
	for _, o := range overrides {
		if f.Changed(o.flag) {
			o.apply()
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if a.output != "text" && a.output != "json" {
		return fmt.Errorf("unknown output format %q (use text or json)", a.output)
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	if cfg.LogJSON {
		w = os.Stderr
	}
	a.log = zerolog.New(w).Level(level).With().Timestamp().Logger()

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = reconciler.NewMetrics()
	a.metrics.MustRegister(a.registry)
	return nil
}

func (a *app) loadGraph() (*graph.Graph, domain.TopologySpec, error) {
	spec, err := config.LoadTopology(a.topologyPath)
	if err != nil {
		return nil, spec, err
	}
	if err := validate.Validate(spec); err != nil {
		return nil, spec, &exitError{code: 3, err: fmt.Errorf("%s: %w", a.topologyPath, err)}
	}
	return graph.Build(spec), spec, nil
}

func (a *app) awsSession(ctx context.Context) (*internalaws.Session, error) {
	if a.session != nil {
		return a.session, nil
	}
	cfg, err := a.cfg.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	a.session = internalaws.NewSession(cfg, a.cfg.RoleARN)
	return a.session, nil
}

// awsConfig resolves credentials through the session so the s3 backend and
// EC2 act as the same principal.
func (a *app) awsConfig(ctx context.Context) (aws.Config, error) {
	s, err := a.awsSession(ctx)
	if err != nil {
		return aws.Config{}, err
	}
	return s.Config(ctx)
}

func (a *app) openStore(ctx context.Context, topology string) (domain.StateStore, io.Closer, error) {
	return a.cfg.OpenStore(ctx, topology, a.awsConfig)
}

func (a *app) provider(ctx context.Context) (domain.Provider, error) {
	s, err := a.awsSession(ctx)
	if err != nil {
		return nil, err
	}
	id, err := s.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve aws identity: %w", err)
	}
	a.log.Info().Str("account", id.Account).Str("arn", id.ARN).Str("region", s.Region()).Msg("using aws identity")
	return internalaws.NewSessionProvider(s), nil
}

func (a *app) reconciler(provider domain.Provider, store domain.StateStore) *reconciler.Reconciler {
	return reconciler.New(provider, store, reconciler.Options{
		Concurrency: a.cfg.Concurrency,
		CallTimeout: a.cfg.CallTimeout,
		RateLimit:   a.cfg.RateLimit,
		Burst:       a.cfg.RateBurst,
		Logger:      a.log,
		Metrics:     a.metrics,
	})
}

// serveMetrics exposes the registry until the returned stop is called.
func (a *app) serveMetrics() (stop func()) {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Str("addr", a.cfg.MetricsAddr).Msg("metrics server failed")
		}
	}()
	a.log.Info().Str("addr", a.cfg.MetricsAddr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// reconcile wires store, provider and reconciler for one run.
func (a *app) reconcile(cmd *cobra.Command, run func(ctx context.Context, r *reconciler.Reconciler, g *graph.Graph) error) error {
	ctx := cmd.Context()
	g, _, err := a.loadGraph()
	if err != nil {
		return err
	}
	store, closer, err := a.openStore(ctx, g.Topology)
	if err != nil {
		return err
	}
	defer closer.Close()
	provider, err := a.provider(ctx)
	if err != nil {
		return err
	}
	stop := a.serveMetrics()
	defer stop()
	return run(ctx, a.reconciler(provider, store), g)
}
