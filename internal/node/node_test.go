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
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/trustspell"
	"github.com/blinklabs-io/trustspell/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestSessionConfig(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		gateway string
		signer  string
	}{
		{
			name:    "defaults",
			modify:  func(*config.Config) {},
			gateway: "stub",
			signer:  "stub",
		},
		{
			name: "http prover and wallet",
			modify: func(cfg *config.Config) {
				cfg.Prover.Mode = trustspell.ProverModeHTTP
				cfg.Prover.Url = "http://127.0.0.1:17784"
				cfg.Wallet.Url = "http://127.0.0.1:3000"
			},
			gateway: "http",
			signer:  "http",
		},
		{
			name: "exec prover",
			modify: func(cfg *config.Config) {
				cfg.Prover.Mode = trustspell.ProverModeExec
				cfg.Prover.Command = []string{"charms", "spell", "prove"}
			},
			gateway: "exec",
			signer:  "stub",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tc.modify(cfg)
			sess, err := trustspell.New(
				SessionConfig(cfg, discardLogger(), prometheus.NewRegistry()),
			)
			require.NoError(t, err)
			defer sess.Teardown(context.Background()) //nolint:errcheck
			assert.Equal(t, tc.gateway, sess.Gateway().Name())
			assert.Equal(t, tc.signer, sess.Signer().Name())
			assert.Equal(t, cfg.SessionID, sess.ID())
			assert.Equal(t, cfg.AppID, sess.AppID())
		})
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Prover.Mode = trustspell.ProverModeHTTP
	err := Run(context.Background(), cfg, discardLogger())
	require.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.ShutdownTimeout = "whenever"
	require.Error(t, Run(context.Background(), cfg, discardLogger()))
}

func TestRunShutsDownWhenCancelled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BindAddr = "127.0.0.1"
	cfg.ApiPort = 0
	cfg.MetricsPort = 0
	cfg.DatabasePath = t.TempDir()
	cfg.SessionID = "node-test"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, Run(ctx, cfg, discardLogger()))

	// The session was saved on shutdown and can be opened again
	sess, err := trustspell.New(
		SessionConfig(cfg, discardLogger(), prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	require.NoError(t, sess.Init(context.Background()))
	require.NoError(t, sess.Teardown(context.Background()))
}
