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

package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/trustspell/database/plugin"
	"github.com/blinklabs-io/trustspell/game"
	"github.com/blinklabs-io/trustspell/txbuilder"
)

type ctxKey string

const configContextKey ctxKey = "trustspell.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultAnchorTimeout   = "5m"
	DefaultWalletTimeout   = "60s"
	DefaultPropagation     = "2s"

	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"

	envPrefix = "trustspell"
)

// ErrPluginListRequested is returned when the user asks for the available
// plugins instead of running
var ErrPluginListRequested = errors.New("plugin list requested")

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type ProverConfig struct {
	// Mode is one of stub, http or exec
	Mode    string   `yaml:"mode"`
	Url     string   `yaml:"url"`
	Command []string `yaml:"command"`
	Timeout string   `yaml:"timeout"`
}

type WalletConfig struct {
	// An empty URL selects the local stub signer
	Url              string `yaml:"url"`
	Timeout          string `yaml:"timeout"`
	PropagationDelay string `yaml:"propagationDelay" split_words:"true"`
}

type GameConfig struct {
	TotalRounds uint32            `yaml:"totalRounds" split_words:"true"`
	Payoffs     game.PayoffMatrix `yaml:"payoffs"`
}

type Config struct {
	AppID           string              `yaml:"appId"           envconfig:"APP_ID"`
	SessionID       string              `yaml:"sessionId"       envconfig:"SESSION_ID"`
	Network         string              `yaml:"network"`
	DatabasePath    string              `yaml:"databasePath"                              split_words:"true"`
	BlobPlugin      string              `yaml:"blobPlugin"      envconfig:"DATABASE_BLOB_PLUGIN"`
	MetadataPlugin  string              `yaml:"metadataPlugin"  envconfig:"DATABASE_METADATA_PLUGIN"`
	BindAddr        string              `yaml:"bindAddr"                                  split_words:"true"`
	ApiPort         uint                `yaml:"apiPort"                                   split_words:"true"`
	MetricsPort     uint                `yaml:"metricsPort"                               split_words:"true"`
	TlsCertFilePath string              `yaml:"tlsCertFilePath" envconfig:"TLS_CERT_FILE_PATH"`
	TlsKeyFilePath  string              `yaml:"tlsKeyFilePath"  envconfig:"TLS_KEY_FILE_PATH"`
	ShutdownTimeout string              `yaml:"shutdownTimeout"                           split_words:"true"`
	Tracing         bool                `yaml:"tracing"`
	TracingStdout   bool                `yaml:"tracingStdout"                             split_words:"true"`
	Prover          ProverConfig        `yaml:"prover"`
	Wallet          WalletConfig        `yaml:"wallet"`
	Fee             txbuilder.FeePolicy `yaml:"fee"`
	Game            GameConfig          `yaml:"game"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		AppID:           "trust-game",
		SessionID:       "default",
		Network:         "testnet",
		DatabasePath:    ".trustspell",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		BindAddr:        "0.0.0.0",
		ApiPort:         8080,
		MetricsPort:     12799,
		ShutdownTimeout: DefaultShutdownTimeout,
		Prover: ProverConfig{
			Mode:    "stub",
			Timeout: DefaultAnchorTimeout,
		},
		Wallet: WalletConfig{
			Timeout:          DefaultWalletTimeout,
			PropagationDelay: DefaultPropagation,
		},
		Fee: txbuilder.DefaultFeePolicy(),
		Game: GameConfig{
			TotalRounds: 10,
			Payoffs:     game.DefaultPayoffMatrix(),
		},
	}
}

var globalConfig = DefaultConfig()

// LoadConfig reads the config file, if any, over the defaults and then
// applies TRUSTSPELL_* environment variables. Without an explicit file,
// ~/.trustspell/trustspell.yaml and /etc/trustspell/trustspell.yaml are
// tried in that order.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".trustspell", "trustspell.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/trustspell/trustspell.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks the values that cannot be checked by the session itself
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"shutdownTimeout":         c.ShutdownTimeout,
		"prover.timeout":          c.Prover.Timeout,
		"wallet.timeout":          c.Wallet.Timeout,
		"wallet.propagationDelay": c.Wallet.PropagationDelay,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.ApiPort > 65535 || c.MetricsPort > 65535 {
		return errors.New("ports must be at most 65535")
	}
	if c.Game.TotalRounds == 0 {
		return errors.New("game.totalRounds must be positive")
	}
	if err := c.Game.Payoffs.Validate(); err != nil {
		return fmt.Errorf("invalid game.payoffs: %w", err)
	}
	return nil
}

// Duration parses a duration already checked by Validate
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

// ListPlugins writes the available plugins when either plugin option is
// set to "list" and returns ErrPluginListRequested
func (c *Config) ListPlugins(w io.Writer) error {
	var pluginType plugin.PluginType
	switch {
	case c.BlobPlugin == "list":
		pluginType = plugin.PluginTypeBlob
	case c.MetadataPlugin == "list":
		pluginType = plugin.PluginTypeMetadata
	default:
		return nil
	}
	fmt.Fprintf(w, "Available %s plugins:\n", plugin.PluginTypeName(pluginType))
	for _, p := range plugin.GetPlugins(pluginType) {
		fmt.Fprintf(w, "  %s: %s\n", p.Name, p.Description)
	}
	return ErrPluginListRequested
}
