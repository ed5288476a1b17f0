// Package main is the entry point for the yyPTP APR calculator. It computes the staking APR of
// yyPTP from Platypus and yyPTP contract state on Avalanche, either once from the command line
// or on demand as a Chainlink External Adapter.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/aggregate"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/chain"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/config"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/contracts"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/metrics"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/model"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/otel"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/rpc"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/validation"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "yyptp-apr",
		Short:         "Compute the yyPTP staking APR from Platypus contract state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./yyptp-apr.yaml)")
	pf.String("rpc-url", "https://rpc.ankr.com/avalanche", "Avalanche C-Chain JSON-RPC endpoint")
	pf.String("yyptp-address", "0x40089e90156fc6f994cc0ec86dbe84634a1c156f", "yyPTP token contract")
	pf.String("yyptp-staking-address", "0x9bc36cc686800be1905bf7e10578ee6fbdd6f27a", "yyPTP staking contract")
	pf.String("pair-address", "0x7a8ae10536d6920aa609d12775ffe6d73376668f", "PTP/yyPTP pair contract")
	pf.String("master-address", "0x68c5f4374228beedfa078e77b5ed93c28a2f713e", "Platypus MasterPlatypus contract")
	pf.Float64("reward-share", 0.15, "fraction of the PTP earned by yyPTP deposits paid to stakers")
	pf.Duration("retry-delay", 2*time.Second, "delay between retries of a transient RPC failure")
	pf.Int("max-attempts", 30, "attempts per RPC request, 0 or less retries forever")
	pf.Duration("request-timeout", 30*time.Second, "timeout of a single RPC attempt")
	pf.Int("workers", 8, "pools fetched concurrently")
	pf.Int("max-pools", 1000, "largest poolLength accepted before reading pools")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text or json)")
	pf.String("otel-endpoint", "", "OTLP/HTTP trace collector, tracing is off when empty")

	root.AddCommand(newRunCmd(), newServeCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the APR once and print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel, cfg.LogFormat)

			shutdown, err := otel.InitTracer(cfg.OtelEndpoint)
			if err != nil {
				logrus.WithError(err).Warn("Tracing disabled")
			} else {
				defer shutdown()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			agg, err := newAggregator(cfg, nil)
			if err != nil {
				return err
			}

			result, err := agg.Run(ctx)
			if err != nil {
				logrus.WithError(err).Error("APR computation failed")
				return err
			}
			return printResult(cmd.OutOrStdout(), result, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().Bool("strict", false, "fail when any pool cannot be read instead of skipping it")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the APR as a Chainlink External Adapter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel, cfg.LogFormat)

			shutdown, err := otel.InitTracer(cfg.OtelEndpoint)
			if err != nil {
				logrus.WithError(err).Warn("Tracing disabled")
			} else {
				defer shutdown()
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			agg, err := newAggregator(cfg, m)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return NewServer(cfg, agg, m, reg).Start(ctx)
		},
	}

	addServeFlags(cmd.Flags())
	return cmd
}

func addServeFlags(f *pflag.FlagSet) {
	f.String("port", "8080", "HTTP port to listen on")
	f.Float64("rate-limit", 10, "adapter requests per second")
	f.Int("rate-burst", 20, "adapter request burst")
	f.Duration("cache-ttl", time.Minute, "how long a computed result is served before recomputing")
	f.Duration("run-timeout", 2*time.Minute, "upper bound on one APR computation")
	f.Float64("max-apr", 10, "largest plausible APR as a fraction")
	f.Float64("max-apr-change", 0.5, "largest plausible relative APR change between computations")
	f.Int("max-skipped-pools", -1, "largest number of skipped pools accepted, negative disables")
	f.Duration("circuit-reset-delay", 5*time.Minute, "time before a tripped circuit is tested again")
}

// setupLogging configures the logging for the application
func setupLogging(level, format string) {
	switch format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Debug("Logging configured")
}

// newAggregator wires the RPC client, the contract bindings and the aggregator. m may be nil.
func newAggregator(cfg config.Config, m *metrics.Collector) (*aggregate.Aggregator, error) {
	addrs, err := cfg.ContractAddresses()
	if err != nil {
		return nil, err
	}
	set, err := contracts.Load(addrs)
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}

	client := rpc.NewClient(rpc.Options{
		Endpoint:       cfg.RPCURL,
		RetryDelay:     cfg.RetryDelay,
		MaxAttempts:    cfg.MaxAttempts,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logrus.StandardLogger(),
		Metrics:        m,
	})

	validationOpts := validation.DefaultValidationOptions()
	validationOpts.MaxAPR = cfg.MaxAPR

	logrus.WithFields(logrus.Fields{
		"rpc_url":      cfg.RPCURL,
		"workers":      cfg.Workers,
		"strict":       cfg.Strict,
		"reward_share": cfg.RewardShare,
		"max_attempts": cfg.MaxAttempts,
	}).Debug("Aggregator configured")

	return aggregate.New(chain.NewCaller(client), aggregate.Options{
		Contracts:   set,
		RewardShare: cfg.RewardShare,
		Workers:     cfg.Workers,
		MaxPools:    cfg.MaxPools,
		Strict:      cfg.Strict,
		Validation:  validationOpts,
	}, logrus.StandardLogger(), m), nil
}

func printResult(w io.Writer, result model.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, s := range result.Skipped {
		fmt.Fprintf(w, "Skipped pool %d: %s\n", s.PoolID, s.Reason)
	}
	fmt.Fprintf(w, "Overall yyPTP APR (assuming 1:1 ratio) = %.2f%% as of block %d\n",
		result.NominalPercent(), result.Block)
	_, err := fmt.Fprintf(w, "Overall yyPTP APR (using current PTP:yyPTP ratio) = %.2f%% as of block %d\n",
		result.DiscountedPercent(), result.Block)
	return err
}
