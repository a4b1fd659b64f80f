// Package main is the entry point for the auction view service, which resolves
// the trove contracts for the wallet's network and serves the aggregated
// ongoing-auction view to the presentation layer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/trove-labs/auction-view/internal/aggregate"
	"github.com/trove-labs/auction-view/internal/config"
	"github.com/trove-labs/auction-view/internal/fetch"
	"github.com/trove-labs/auction-view/internal/format"
	"github.com/trove-labs/auction-view/internal/metrics"
	"github.com/trove-labs/auction-view/internal/notify"
	"github.com/trove-labs/auction-view/internal/otel"
	"github.com/trove-labs/auction-view/internal/registry"
	"github.com/trove-labs/auction-view/internal/resolver"
	"github.com/trove-labs/auction-view/internal/session"
	"github.com/trove-labs/auction-view/internal/types"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:          "server",
		Short:        "Trove auction view service",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			setupLogging()
		},
	}

	root.AddCommand(newServeCmd(&cfg), newResolveCmd(&cfg))
	return root
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the auction view over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
}

func newResolveCmd(cfg *config.Config) *cobra.Command {
	var role string
	var chain uint64

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a contract role for a network and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(cfg.ManifestPath)
			if err != nil {
				return err
			}
			notes := notify.NewChannel()
			res, resolveErr := resolver.New(reg, notes).Resolve(cmd.Context(), types.ContractRole(role), types.ChainID(chain))

			out := struct {
				Resolution   *resolver.Result     `json:"resolution,omitempty"`
				Notification *notify.Notification `json:"notification,omitempty"`
			}{}
			if resolveErr == nil {
				out.Resolution = &res
			}
			if n := notes.Current(); !n.Empty() {
				out.Notification = &n
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			return resolveErr
		},
	}
	cmd.Flags().StringVar(&role, "role", string(types.RoleAuction), "contract role (troveAuction, troveCollection, troveToken, troveStake)")
	cmd.Flags().Uint64Var(&chain, "chain", uint64(types.ChainBaseSepolia), "wallet network chain id")
	return cmd
}

func loadRegistry(manifestPath string) (*registry.Registry, error) {
	dep, err := config.LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("error loading deployment manifest: %w", err)
	}
	return registry.New(dep), nil
}

// app is everything serve wires together
type app struct {
	registry *registry.Registry
	session  *session.Session
	chains   *fetch.MultiChainClient
	gatherer prometheus.Gatherer
}

func buildApp(cfg config.Config) (*app, error) {
	reg, err := loadRegistry(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	formatter, err := format.ForLocale(cfg.DisplayLocale)
	if err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var m *metrics.Metrics
	if cfg.EnableMetrics {
		m = metrics.New(promRegistry)
	}

	chains := fetch.NewMultiChainClient(cfg.Chains, fetch.MultiChainOptions{
		Timeout:          cfg.RPCTimeout,
		RetryMax:         cfg.RPCRetryMax,
		RateLimitRPS:     cfg.RPCRateLimitRPS,
		RateLimitBurst:   cfg.RPCRateLimitBurst,
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
		Metrics:          m,
	})

	agg := aggregate.New(readerSource(chains), aggregate.Options{
		Formatter:          formatter,
		Metrics:            m,
		MaxConcurrentReads: cfg.RPCRateLimitBurst,
	})

	notes := notify.NewChannel()
	res := resolver.New(reg, notes).WithMetrics(m)

	return &app{
		registry: reg,
		session:  session.New(res, notes, agg),
		chains:   chains,
		gatherer: promRegistry,
	}, nil
}

// readerSource adapts the per-network client to the aggregator
func readerSource(chains *fetch.MultiChainClient) aggregate.ReaderSource {
	return func(ctx context.Context, id types.ChainID) (aggregate.AuctionReader, error) {
		r, err := chains.ReaderFor(ctx, id)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.chains.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := a.session.SwitchNetwork(ctx, cfg.DefaultChainID); err != nil {
		return fmt.Errorf("error resolving default network: %w", err)
	}

	go func() {
		if err := a.session.Run(ctx, cfg.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
			logrus.Errorf("Refresh loop stopped: %v", err)
		}
	}()

	logrus.WithFields(logrus.Fields{
		"port":             cfg.Port,
		"default_chain_id": uint64(cfg.DefaultChainID),
		"supported":        a.registry.Supported(),
		"poll_interval":    cfg.PollInterval,
		"locale":           cfg.DisplayLocale,
		"metrics":          cfg.EnableMetrics,
	}).Info("Server initialized")

	return NewServer(cfg, a.session, a.registry, a.chains, a.gatherer).Start(ctx)
}
