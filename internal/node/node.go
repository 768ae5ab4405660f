// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/blinklabs-io/trustspell"
	"github.com/blinklabs-io/trustspell/api"
	"github.com/blinklabs-io/trustspell/internal/config"
)

// SessionConfig maps the loaded configuration onto session options
func SessionConfig(
	cfg *config.Config,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) trustspell.Config {
	var proverTarget []string
	switch cfg.Prover.Mode {
	case trustspell.ProverModeHTTP:
		proverTarget = []string{cfg.Prover.Url}
	case trustspell.ProverModeExec:
		proverTarget = cfg.Prover.Command
	}
	return trustspell.NewConfig(
		trustspell.WithLogger(logger),
		trustspell.WithPrometheusRegistry(promRegistry),
		trustspell.WithAppID(cfg.AppID),
		trustspell.WithSessionID(cfg.SessionID),
		trustspell.WithNetwork(cfg.Network),
		trustspell.WithDataDir(cfg.DatabasePath),
		trustspell.WithBlobPlugin(cfg.BlobPlugin),
		trustspell.WithMetadataPlugin(cfg.MetadataPlugin),
		trustspell.WithProver(cfg.Prover.Mode, proverTarget...),
		trustspell.WithAnchorTimeout(config.Duration(cfg.Prover.Timeout)),
		trustspell.WithWallet(cfg.Wallet.Url),
		trustspell.WithWalletTimeout(config.Duration(cfg.Wallet.Timeout)),
		trustspell.WithPropagationDelay(
			config.Duration(cfg.Wallet.PropagationDelay),
		),
		trustspell.WithFeePolicy(cfg.Fee),
		trustspell.WithPayoffMatrix(cfg.Game.Payoffs),
		trustspell.WithTotalRounds(cfg.Game.TotalRounds),
		trustspell.WithTracing(cfg.Tracing),
		trustspell.WithTracingStdout(cfg.TracingStdout),
	)
}

// Run serves the API and metrics until ctx is cancelled or SIGINT/SIGTERM
// is received, then shuts everything down and saves the session
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout := 30 * time.Second
	if cfg.ShutdownTimeout != "" {
		var err error
		shutdownTimeout, err = time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid shutdown timeout: %w", err)
		}
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sess, err := trustspell.New(SessionConfig(cfg, logger, promRegistry))
	if err != nil {
		return err
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		ctx,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	if err := sess.Init(signalCtx); err != nil {
		_ = sess.Teardown(context.Background()) //nolint:contextcheck
		return err
	}
	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:  logger,
		Session: sess,
		ListenAddress: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.ApiPort,
		),
		TlsCertFilePath: cfg.TlsCertFilePath,
		TlsKeyFilePath:  cfg.TlsKeyFilePath,
	})
	if err != nil {
		_ = sess.Teardown(context.Background()) //nolint:contextcheck
		return err
	}

	g, gctx := errgroup.WithContext(signalCtx)
	if err := apiServer.Start(gctx); err != nil {
		_ = sess.Teardown(context.Background()) //nolint:contextcheck
		return err
	}

	// Metrics and debug listener
	metricsMux := http.NewServeMux()
	metricsMux.Handle(
		"/metrics",
		promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	)
	metricsMux.Handle("/debug/pprof/", http.DefaultServeMux)
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		Handler:           metricsMux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.Info(
		"serving prometheus metrics on "+metricsServer.Addr,
		"component", "node",
	)
	g.Go(func() error {
		err := metricsServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start metrics listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown", "component", "node")
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		//nolint:contextcheck
		return errors.Join(
			metricsServer.Shutdown(shutdownCtx),
			apiServer.Stop(shutdownCtx),
		)
	})
	runErr := g.Wait()
	if runErr != nil {
		logger.Error("node error", "component", "node", "error", runErr)
	}

	//nolint:contextcheck
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()
	//nolint:contextcheck
	if err := sess.Teardown(shutdownCtx); err != nil {
		logger.Error(
			"shutdown errors occurred",
			"component", "node",
			"error", err,
		)
		return errors.Join(runErr, err)
	}
	logger.Info("shutdown complete", "component", "node")
	return runErr
}
