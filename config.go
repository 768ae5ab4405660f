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

package trustspell

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blinklabs-io/trustspell/game"
	"github.com/blinklabs-io/trustspell/prover"
	"github.com/blinklabs-io/trustspell/txbuilder"
	"github.com/blinklabs-io/trustspell/wallet"
)

// Prover modes
const (
	ProverModeStub = "stub"
	ProverModeHTTP = "http"
	ProverModeExec = "exec"
)

const (
	DefaultAppID         = "trust-game"
	DefaultSessionID     = "default"
	DefaultNetwork       = "testnet"
	DefaultTotalRounds   = 10
	DefaultAnchorTimeout = 5 * time.Minute
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	now              func() time.Time
	gateway          prover.Gateway
	signer           wallet.Signer
	payoffMatrix     game.PayoffMatrix
	feePolicy        txbuilder.FeePolicy
	appID            string
	sessionID        string
	network          string
	dataDir          string
	blobPlugin       string
	metadataPlugin   string
	proverMode       string
	proverURL        string
	proverCommand    []string
	walletURL        string
	anchorTimeout    time.Duration
	walletTimeout    time.Duration
	propagationDelay time.Duration
	totalRounds      uint32
	tracing          bool
	tracingStdout    bool
}

// ConfigOptionFunc is a type that represents functions that modify the session config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new session config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:           slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:              time.Now,
		payoffMatrix:     game.DefaultPayoffMatrix(),
		feePolicy:        txbuilder.DefaultFeePolicy(),
		appID:            DefaultAppID,
		sessionID:        DefaultSessionID,
		network:          DefaultNetwork,
		proverMode:       ProverModeStub,
		anchorTimeout:    DefaultAnchorTimeout,
		walletTimeout:    wallet.DefaultTimeout,
		propagationDelay: wallet.DefaultPropagationDelay,
		totalRounds:      DefaultTotalRounds,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *Config) validate() error {
	if _, err := txbuilder.NetworkParams(c.network); err != nil {
		return err
	}
	if err := c.payoffMatrix.Validate(); err != nil {
		return err
	}
	if c.sessionID == "" {
		return errors.New("session ID must not be empty")
	}
	if c.gateway != nil {
		return nil
	}
	switch c.proverMode {
	case ProverModeStub:
	case ProverModeHTTP:
		if c.proverURL == "" {
			return errors.New("http prover requires a URL")
		}
	case ProverModeExec:
		if len(c.proverCommand) == 0 {
			return errors.New("exec prover requires a command")
		}
	default:
		return fmt.Errorf("unknown prover mode: %q", c.proverMode)
	}
	return nil
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) ConfigOptionFunc {
	return func(c *Config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithAppID sets the application ID carried in every spell
func WithAppID(appID string) ConfigOptionFunc {
	return func(c *Config) {
		c.appID = appID
	}
}

// WithSessionID names the session. Saved state is keyed by it.
func WithSessionID(sessionID string) ConfigOptionFunc {
	return func(c *Config) {
		c.sessionID = sessionID
	}
}

// WithNetwork specifies the named Bitcoin network for addresses. The default is testnet
func WithNetwork(network string) ConfigOptionFunc {
	return func(c *Config) {
		c.network = network
	}
}

// WithDataDir specifies the persistent data directory to use. The default is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithProver selects the prover mode. The target is the base URL for the
// http mode and the command line for the exec mode.
func WithProver(mode string, target ...string) ConfigOptionFunc {
	return func(c *Config) {
		c.proverMode = mode
		switch mode {
		case ProverModeHTTP:
			if len(target) > 0 {
				c.proverURL = target[0]
			}
		case ProverModeExec:
			c.proverCommand = target
		}
	}
}

// WithProverGateway uses the given gateway instead of one built from the prover mode
func WithProverGateway(gateway prover.Gateway) ConfigOptionFunc {
	return func(c *Config) {
		c.gateway = gateway
	}
}

// WithWallet specifies the wallet daemon URL. Without one, a local stub signer
// reports txids without broadcasting anything
func WithWallet(url string) ConfigOptionFunc {
	return func(c *Config) {
		c.walletURL = url
	}
}

// WithSigner uses the given signer instead of one built from the wallet URL
func WithSigner(signer wallet.Signer) ConfigOptionFunc {
	return func(c *Config) {
		c.signer = signer
	}
}

// WithWalletTimeout bounds each sign and broadcast call
func WithWalletTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.walletTimeout = timeout
	}
}

// WithPropagationDelay sets the wait between commit and spell broadcasts
func WithPropagationDelay(delay time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.propagationDelay = delay
	}
}

// WithAnchorTimeout bounds each prover call
func WithAnchorTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.anchorTimeout = timeout
	}
}

// WithFeePolicy sets the fee policy for locally built transaction pairs
func WithFeePolicy(policy txbuilder.FeePolicy) ConfigOptionFunc {
	return func(c *Config) {
		c.feePolicy = policy
	}
}

// WithPayoffMatrix sets the initial payoff matrix
func WithPayoffMatrix(matrix game.PayoffMatrix) ConfigOptionFunc {
	return func(c *Config) {
		c.payoffMatrix = matrix
	}
}

// WithTotalRounds sets the number of rounds in a game
func WithTotalRounds(rounds uint32) ConfigOptionFunc {
	return func(c *Config) {
		c.totalRounds = rounds
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) OTLP collector at localhost:4318
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}
